// Package snapshot keeps the agent's current view of the host.
//
// A Controller owns every collector and the values they last produced. One
// goroutine refreshes it on an interval while request handlers read it; a
// single mutex guards the whole aggregate, so a reader either sees the state
// before a refresh or after it, never a mix.
package snapshot

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"fleetwatch/pkg/collector"
	"fleetwatch/pkg/containers"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned by lookups for names absent from the snapshot.
	ErrNotFound = errors.New("not found")

	// ErrNotCollected is returned when a subsystem has never been read
	// successfully.
	ErrNotCollected = errors.New("not collected")
)

// Storage groups physical disks and mounted volumes.
type Storage struct {
	Disks   []models.DiskSummary   `json:"disks"`
	Volumes []models.VolumeSummary `json:"volumes"`
}

// Controller is the agent's snapshot aggregate.
type Controller struct {
	mu sync.Mutex

	source  collector.Source
	runtime containers.Runtime // nil once containers are disabled
	logger  zerolog.Logger

	generation  uint64
	refreshedAt time.Time

	system     *models.SystemSummary
	cpu        *models.CPUSummary
	memory     *models.MemorySummary
	disks      map[string]models.DiskSummary
	volumes    map[string]models.VolumeSummary
	network    map[string]models.NetworkInterfaceSummary
	containers map[string]models.ContainerSummary
}

// New reads every subsystem once before returning. If runtime is nil or
// does not answer a ping, container collection stays disabled for the
// lifetime of the controller.
func New(ctx context.Context, source collector.Source, runtime containers.Runtime) *Controller {
	c := &Controller{
		source:     source,
		logger:     log.Component("snapshot"),
		disks:      map[string]models.DiskSummary{},
		volumes:    map[string]models.VolumeSummary{},
		network:    map[string]models.NetworkInterfaceSummary{},
		containers: map[string]models.ContainerSummary{},
	}

	if runtime != nil {
		if err := runtime.Ping(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Container runtime unreachable, container collection disabled")
		} else {
			c.runtime = runtime
		}
	}

	c.Refresh(ctx)
	return c
}

// Refresh re-reads every subsystem and commits the results. A failing
// collector keeps its previous value and does not stop the others.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if system, err := c.source.System(ctx); c.check("system", err) {
		c.system = &system
	}
	if cpu, err := c.source.CPU(ctx); c.check("cpu", err) {
		c.cpu = &cpu
	}
	if memory, err := c.source.Memory(ctx); c.check("memory", err) {
		c.memory = &memory
	}
	if disks, err := c.source.Disks(ctx); c.check("disks", err) {
		c.disks = keyBy(disks, func(d models.DiskSummary) string { return d.Device })
	}
	if volumes, err := c.source.Volumes(ctx); c.check("volumes", err) {
		c.volumes = keyBy(volumes, func(v models.VolumeSummary) string { return v.Name })
	}
	if network, err := c.source.NetworkInterfaces(ctx); c.check("network", err) {
		c.network = keyBy(network, func(n models.NetworkInterfaceSummary) string { return n.Name })
	}
	if c.runtime != nil {
		if list, err := c.runtime.List(ctx); c.check("containers", err) {
			c.containers = keyBy(list, func(s models.ContainerSummary) string { return s.ID })
		}
	}

	c.generation++
	c.refreshedAt = time.Now()

	c.logger.Debug().
		Uint64("generation", c.generation).
		Dur("took", time.Since(start)).
		Msg("Snapshot refreshed")
}

func (c *Controller) check(subsystem string, err error) bool {
	if err != nil {
		c.logger.Warn().Err(err).Str("subsystem", subsystem).Msg("Collector failed, keeping previous value")
		return false
	}
	return true
}

// Run refreshes forever, sleeping interval between refreshes.
func (c *Controller) Run(interval time.Duration) {
	for {
		c.Refresh(context.Background())
		time.Sleep(interval)
	}
}

// RunContext is Run with cancellation.
func (c *Controller) RunContext(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.Refresh(ctx)
			timer.Reset(interval)
		}
	}
}

// ContainersEnabled reports whether container collection is active.
func (c *Controller) ContainersEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtime != nil
}

// Runtime returns the container runtime, or nil when disabled. Streams
// opened on it do not touch the snapshot.
func (c *Controller) Runtime() containers.Runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtime
}

// Generation returns the number of refreshes committed so far.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// RefreshedAt returns when the last refresh was committed.
func (c *Controller) RefreshedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshedAt
}

// System returns the OS summary, or ErrNotCollected before the first
// successful read.
func (c *Controller) System() (models.SystemSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.system == nil {
		return models.SystemSummary{}, ErrNotCollected
	}
	return *c.system, nil
}

// CPU returns the processor summary, or ErrNotCollected.
func (c *Controller) CPU() (models.CPUSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cpu == nil {
		return models.CPUSummary{}, ErrNotCollected
	}
	return cloneCPU(*c.cpu), nil
}

// Memory returns memory and swap usage, or ErrNotCollected.
func (c *Controller) Memory() (models.MemorySummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memory == nil {
		return models.MemorySummary{}, ErrNotCollected
	}
	return *c.memory, nil
}

// Network returns every interface ordered by name.
func (c *Controller) Network() []models.NetworkInterfaceSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedValues(c.network)
}

// Storage returns disks and volumes from the same refresh.
func (c *Controller) Storage() Storage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Storage{
		Disks:   sortedValues(c.disks),
		Volumes: sortedValues(c.volumes),
	}
}

// Disks returns every physical disk ordered by device name.
func (c *Controller) Disks() []models.DiskSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedValues(c.disks)
}

// Volumes returns every mounted volume ordered by name.
func (c *Controller) Volumes() []models.VolumeSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedValues(c.volumes)
}

// Containers returns every known container, or an empty list when
// container collection is disabled.
func (c *Controller) Containers() []models.ContainerSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime == nil {
		return []models.ContainerSummary{}
	}
	return sortedValues(c.containers)
}

// Disk finds a disk by device name.
func (c *Controller) Disk(name string) (models.DiskSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.disks, name)
}

// Volume finds a volume by name.
func (c *Controller) Volume(name string) (models.VolumeSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.volumes, name)
}

// NetworkInterface finds an interface by name.
func (c *Controller) NetworkInterface(name string) (models.NetworkInterfaceSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.network, name)
}

// Container finds a container by id or by name.
func (c *Controller) Container(idOrName string) (models.ContainerSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runtime == nil {
		return models.ContainerSummary{}, ErrNotFound
	}
	if container, ok := c.containers[idOrName]; ok {
		return container, nil
	}
	for _, container := range c.containers {
		if container.Name == idOrName {
			return container, nil
		}
	}
	return models.ContainerSummary{}, ErrNotFound
}

// Overview returns every subsystem as of the same refresh.
func (c *Controller) Overview() models.OverviewSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	overview := models.OverviewSummary{
		Disks:   sortedValues(c.disks),
		Volumes: sortedValues(c.volumes),
		Network: sortedValues(c.network),
	}
	if c.system != nil {
		system := *c.system
		overview.System = &system
	}
	if c.cpu != nil {
		cpu := cloneCPU(*c.cpu)
		overview.CPU = &cpu
	}
	if c.memory != nil {
		memory := *c.memory
		overview.Memory = &memory
	}
	if c.runtime != nil {
		overview.Containers = sortedValues(c.containers)
	}
	return overview
}

func cloneCPU(cpu models.CPUSummary) models.CPUSummary {
	cpu.CoreUsage = slices.Clone(cpu.CoreUsage)
	return cpu
}

func keyBy[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[key(item)] = item
	}
	return out
}

func sortedValues[T any](m map[string]T) []T {
	keys := slices.Collect(maps.Keys(m))
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		out = append(out, m[key])
	}
	return out
}

func lookup[T any](m map[string]T, key string) (T, error) {
	value, ok := m[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return value, nil
}
