package machine

import (
	"time"

	"fleetwatch/pkg/models"
)

// FromOverview builds a new machine record from an agent overview. The
// overview must carry a system summary.
func FromOverview(id, address, group string, overview *models.OverviewSummary, now time.Time) *models.Machine {
	machine := &models.Machine{
		ID:      id,
		Group:   group,
		Address: address,
		Status:  models.MachineStatus{State: models.MachineRunning, LastChecked: now},
		Added:   now,
		Type:    models.MachineBareMetal,
		Tags:    []models.Tag{},
	}

	if sys := overview.System; sys != nil {
		machine.System = &models.MachineSystem{
			MachineID:     sys.MachineID,
			Family:        sys.Family,
			KernelVersion: sys.KernelVersion,
			OSVersion:     sys.OSVersion,
			OS:            sys.OS,
			OSPretty:      sys.OSPretty,
			Hostname:      sys.Hostname,
		}
	}

	if mem := overview.Memory; mem != nil {
		machine.Memory = &models.MachineMemory{Memory: mem.Memory.Total, Swap: mem.Swap.Total}
	}

	if cpu := overview.CPU; cpu != nil {
		machine.CPU = &models.MachineCPU{
			Cores:        uint64(max(cpu.Cores, 0)),
			Architecture: cpu.Architecture,
			Model:        cpu.Model,
			Vendor:       cpu.Vendor,
		}
	}

	for _, disk := range overview.Disks {
		machine.Disks = append(machine.Disks, models.MachineDisk{
			Device:     disk.Device,
			Kind:       disk.Kind,
			Interface:  disk.Interface,
			SizeActual: disk.SizeActual,
			SizeRaw:    disk.SizeRaw,
			SectorSize: disk.SectorSize,
			Vendor:     disk.Vendor,
			Model:      disk.Model,
			Serial:     disk.Serial,
		})
	}

	for _, volume := range overview.Volumes {
		machine.Volumes = append(machine.Volumes, models.MachineVolume{
			Name:       volume.Name,
			MountPoint: volume.MountPoint,
			TotalSpace: volume.TotalSpace,
			FileSystem: volume.FileSystem,
		})
	}

	for _, nic := range overview.Network {
		addresses := make([]string, 0, len(nic.Addresses))
		for _, address := range nic.Addresses {
			addresses = append(addresses, address.Address)
			machine.Addresses = append(machine.Addresses, address)
		}
		machine.NetworkInterfaces = append(machine.NetworkInterfaces, models.MachineNetworkInterface{
			Name:      nic.Name,
			Addresses: addresses,
			Virtual:   nic.Virtual,
			MAC:       nic.MAC,
			Speed:     nic.Speed,
			MTU:       nic.MTU,
			Duplex:    nic.Duplex,
			Vendor:    nic.Vendor,
		})
	}

	for _, container := range overview.Containers {
		state := string(container.State)
		if container.State == models.ContainerUnknown && container.StateRaw != "" {
			state = container.StateRaw
		}
		machine.Containers = append(machine.Containers, models.MachineContainer{
			ContainerID: container.ID,
			Name:        container.Name,
			Image:       container.Image,
			Created:     container.Created,
			State:       state,
		})
	}

	return machine
}
