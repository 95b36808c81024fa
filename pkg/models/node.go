package models

// SystemSummary describes the host operating system of an agent.
type SystemSummary struct {
	MachineID     string `json:"machine_id,omitempty"`
	Family        string `json:"family,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`
	OSPretty      string `json:"os_pretty,omitempty"`
	OSVersion     string `json:"os_version,omitempty"`
	OS            string `json:"os,omitempty"`
	Hostname      string `json:"hostname,omitempty"`
	BootTime      uint64 `json:"boot_time,omitempty"`
	UpTime        uint64 `json:"up_time,omitempty"`
}

// CoreSummary is the state of one logical CPU.
type CoreSummary struct {
	Name      string  `json:"name"`
	Frequency uint64  `json:"frequency"`
	Usage     float64 `json:"usage"`
}

// CPUSummary describes the processor package of a host.
type CPUSummary struct {
	Cores        int           `json:"cores"`
	Architecture string        `json:"architecture,omitempty"`
	Model        string        `json:"model,omitempty"`
	Vendor       string        `json:"vendor,omitempty"`
	CoreUsage    []CoreSummary `json:"core_usage,omitempty"`
}

// MemoryUsage represents usage of one memory pool.
type MemoryUsage struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

// MemorySummary pairs physical memory with swap.
type MemorySummary struct {
	Memory MemoryUsage `json:"memory"`
	Swap   MemoryUsage `json:"swap"`
}

// OverviewSummary is the full snapshot an agent serves in one response.
// Nil sections were not collected.
type OverviewSummary struct {
	System     *SystemSummary            `json:"system,omitempty"`
	CPU        *CPUSummary               `json:"cpu,omitempty"`
	Memory     *MemorySummary            `json:"memory,omitempty"`
	Disks      []DiskSummary             `json:"disks,omitempty"`
	Volumes    []VolumeSummary           `json:"volumes,omitempty"`
	Network    []NetworkInterfaceSummary `json:"network,omitempty"`
	Containers []ContainerSummary        `json:"containers,omitempty"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
