package collector

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"fleetwatch/pkg/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// System reads host identity and uptime.
func (h *Host) System(ctx context.Context) (models.SystemSummary, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return models.SystemSummary{}, fmt.Errorf("failed to get host info: %w", err)
	}

	pretty := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)

	return models.SystemSummary{
		MachineID:     h.machineID(),
		Family:        info.OS,
		KernelVersion: info.KernelVersion,
		OSPretty:      pretty,
		OSVersion:     info.PlatformVersion,
		OS:            info.Platform,
		Hostname:      info.Hostname,
		BootTime:      info.BootTime,
		UpTime:        info.Uptime,
	}, nil
}

func (h *Host) machineID() string {
	data, err := os.ReadFile(h.machineIDPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// CPU reads processor identity and per-core usage since the previous call.
func (h *Host) CPU(ctx context.Context) (models.CPUSummary, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return models.CPUSummary{}, fmt.Errorf("failed to get CPU info: %w", err)
	}

	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil || physical == 0 {
		physical = runtime.NumCPU()
	}

	// A zero interval compares against the previous call, so the first
	// sample after start reports zero usage.
	percents, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return models.CPUSummary{}, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(percents) == 0 {
		return models.CPUSummary{}, fmt.Errorf("%w: cpu usage", ErrNoData)
	}

	summary := models.CPUSummary{
		Cores:        physical,
		Architecture: runtime.GOARCH,
		CoreUsage:    make([]models.CoreSummary, 0, len(percents)),
	}
	if len(infos) > 0 {
		summary.Model = infos[0].ModelName
		summary.Vendor = infos[0].VendorID
	}

	for i, usage := range percents {
		core := models.CoreSummary{
			Name:  fmt.Sprintf("cpu%d", i),
			Usage: usage,
		}
		switch {
		case i < len(infos):
			core.Frequency = uint64(infos[i].Mhz)
		case len(infos) > 0:
			core.Frequency = uint64(infos[0].Mhz)
		}
		summary.CoreUsage = append(summary.CoreUsage, core)
	}

	return summary, nil
}

// Memory reads physical memory and swap usage.
func (h *Host) Memory(ctx context.Context) (models.MemorySummary, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MemorySummary{}, fmt.Errorf("failed to get memory usage: %w", err)
	}

	summary := models.MemorySummary{
		Memory: models.MemoryUsage{
			Total:     vm.Total,
			Used:      vm.Used,
			Available: vm.Available,
		},
	}

	// Hosts without swap are not an error.
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		summary.Swap = models.MemoryUsage{
			Total:     swap.Total,
			Used:      swap.Used,
			Available: swap.Free,
		}
	}

	return summary, nil
}
