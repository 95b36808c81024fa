package models

import "time"

// MachineType is the kind of host a machine record describes.
type MachineType string

const (
	MachineBareMetal      MachineType = "bare_metal"
	MachineVirtualMachine MachineType = "virtual_machine"
	MachineHypervisor     MachineType = "hypervisor"
)

// MachineState is the last observed reachability of a machine's agent.
type MachineState string

const (
	MachineRunning MachineState = "running"
	MachineStopped MachineState = "stopped"
	MachineUnknown MachineState = "unknown"
)

// ParseMachineState maps a stored value onto a known state.
func ParseMachineState(raw string) MachineState {
	switch MachineState(raw) {
	case MachineRunning, MachineStopped:
		return MachineState(raw)
	default:
		return MachineUnknown
	}
}

// Tag is a free-form key/value label on a machine.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MachineStatus is the reachability state of a machine.
type MachineStatus struct {
	State       MachineState `json:"state"`
	LastChecked time.Time    `json:"last_checked"`
}

// MachineSystem is the identity data of a registered host.
type MachineSystem struct {
	MachineID     string `json:"machine_id"`
	Family        string `json:"family"`
	KernelVersion string `json:"kernel_version"`
	OSVersion     string `json:"os_version"`
	OS            string `json:"os"`
	OSPretty      string `json:"os_pretty"`
	Hostname      string `json:"hostname"`
}

// MachineMemory holds memory capacity in bytes.
type MachineMemory struct {
	Memory uint64 `json:"memory"`
	Swap   uint64 `json:"swap"`
}

// MachineCPU holds processor facts captured at registration.
type MachineCPU struct {
	Cores        uint64 `json:"cores"`
	Architecture string `json:"architecture"`
	Model        string `json:"model,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
}

// MachineDisk is a physical disk captured at registration.
type MachineDisk struct {
	Device     string        `json:"device"`
	Kind       DiskKind      `json:"type"`
	Interface  DiskInterface `json:"interface"`
	SizeActual uint64        `json:"size_actual"`
	SizeRaw    uint64        `json:"size_raw,omitempty"`
	SectorSize uint64        `json:"sector_size,omitempty"`
	Vendor     string        `json:"vendor,omitempty"`
	Model      string        `json:"model,omitempty"`
	Serial     string        `json:"serial,omitempty"`
}

// MachineVolume is a filesystem captured at registration.
type MachineVolume struct {
	Name       string `json:"name"`
	MountPoint string `json:"mount_point"`
	TotalSpace uint64 `json:"total_space"`
	FileSystem string `json:"file_system,omitempty"`
}

// MachineNetworkInterface is a network interface captured at registration.
type MachineNetworkInterface struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
	Virtual   bool     `json:"virtual"`
	MAC       string   `json:"mac,omitempty"`
	Speed     uint64   `json:"speed,omitempty"`
	MTU       uint64   `json:"mtu,omitempty"`
	Duplex    string   `json:"duplex,omitempty"`
	Vendor    string   `json:"vendor,omitempty"`
}

// MachineContainer is a container captured at registration.
type MachineContainer struct {
	ContainerID string    `json:"container_id"`
	Name        string    `json:"name"`
	Image       string    `json:"image"`
	Created     time.Time `json:"created"`
	State       string    `json:"state"`
}

// Machine is the durable inventory record of a registered agent host.
type Machine struct {
	ID                string                    `json:"id"`
	Group             string                    `json:"group"`
	Address           string                    `json:"address"`
	Status            MachineStatus             `json:"status"`
	Added             time.Time                 `json:"added"`
	Updated           *time.Time                `json:"updated,omitempty"`
	Type              MachineType               `json:"machine_type"`
	Tags              []Tag                     `json:"tags"`
	System            *MachineSystem            `json:"system,omitempty"`
	Memory            *MachineMemory            `json:"memory,omitempty"`
	CPU               *MachineCPU               `json:"cpu,omitempty"`
	Disks             []MachineDisk             `json:"disks,omitempty"`
	Volumes           []MachineVolume           `json:"volumes,omitempty"`
	NetworkInterfaces []MachineNetworkInterface `json:"network_interfaces,omitempty"`
	Addresses         []AddressSummary          `json:"addresses,omitempty"`
	Containers        []MachineContainer        `json:"containers,omitempty"`
}

// MachineUtilization is a live resource reading fetched from a machine's agent.
type MachineUtilization struct {
	MachineID string          `json:"machine_id"`
	Checked   time.Time       `json:"checked"`
	Cores     []CoreSummary   `json:"cores"`
	Memory    MemoryUsage     `json:"memory"`
	Swap      MemoryUsage     `json:"swap"`
	Volumes   []VolumeSummary `json:"volumes"`
}

// RegisterMachineRequest is the body of a registration call.
type RegisterMachineRequest struct {
	Address string `json:"address"`
	Group   string `json:"group"`
}
