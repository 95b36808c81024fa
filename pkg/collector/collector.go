// Package collector reads the current hardware and operating system state
// of the local host.
package collector

import (
	"context"
	"errors"

	"fleetwatch/pkg/models"
)

const (
	defaultSysRoot       = "/sys"
	defaultMachineIDPath = "/etc/machine-id"
)

// ErrNoData is returned when a read succeeded but produced nothing usable.
var ErrNoData = errors.New("collector: no data")

// Source produces value snapshots of each host subsystem. Every call
// returns a fresh value owned by the caller.
type Source interface {
	System(ctx context.Context) (models.SystemSummary, error)
	CPU(ctx context.Context) (models.CPUSummary, error)
	Memory(ctx context.Context) (models.MemorySummary, error)
	Disks(ctx context.Context) ([]models.DiskSummary, error)
	Volumes(ctx context.Context) ([]models.VolumeSummary, error)
	NetworkInterfaces(ctx context.Context) ([]models.NetworkInterfaceSummary, error)
}

// Host is the Source for the machine the process runs on.
type Host struct {
	sysRoot       string
	machineIDPath string
}

// Option customises a Host.
type Option func(*Host)

// WithSysRoot points sysfs lookups at a different root.
func WithSysRoot(root string) Option {
	return func(h *Host) {
		h.sysRoot = root
	}
}

// WithMachineIDPath overrides the location of the machine-id file.
func WithMachineIDPath(path string) Option {
	return func(h *Host) {
		h.machineIDPath = path
	}
}

// NewHost creates a Source reading the local host.
func NewHost(opts ...Option) *Host {
	h := &Host{
		sysRoot:       defaultSysRoot,
		machineIDPath: defaultMachineIDPath,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ Source = (*Host)(nil)
