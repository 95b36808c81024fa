package models

import (
	"strings"
	"time"
)

// ContainerState is the lifecycle state reported by a container runtime.
type ContainerState string

const (
	ContainerRunning    ContainerState = "running"
	ContainerCreated    ContainerState = "created"
	ContainerRestarting ContainerState = "restarting"
	ContainerRemoving   ContainerState = "removing"
	ContainerPaused     ContainerState = "paused"
	ContainerStopped    ContainerState = "stopped"
	ContainerDead       ContainerState = "dead"
	ContainerEmpty      ContainerState = "empty"
	ContainerUnknown    ContainerState = "unknown"
)

// ParseContainerState maps a runtime status string onto a known state.
// Docker reports stopped containers as "exited".
func ParseContainerState(raw string) ContainerState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running":
		return ContainerRunning
	case "created":
		return ContainerCreated
	case "restarting":
		return ContainerRestarting
	case "removing":
		return ContainerRemoving
	case "paused":
		return ContainerPaused
	case "exited", "stopped":
		return ContainerStopped
	case "dead":
		return ContainerDead
	case "empty":
		return ContainerEmpty
	default:
		return ContainerUnknown
	}
}

// ContainerPort is a published port mapping.
type ContainerPort struct {
	Container     uint16   `json:"container"`
	Host          uint16   `json:"host,omitempty"`
	Protocol      string   `json:"protocol"`
	HostAddresses []string `json:"host_addresses,omitempty"`
}

// ContainerVolume is a mount inside a container.
type ContainerVolume struct {
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// ContainerNetwork is a network endpoint a container is attached to.
type ContainerNetwork struct {
	Name       string `json:"name"`
	NetworkID  string `json:"network_id"`
	EndpointID string `json:"endpoint_id"`
}

// ContainerStatistics is a point-in-time resource sample of a container.
type ContainerStatistics struct {
	CPUUtilization    float64 `json:"cpu_utilization"`
	MemoryUtilization float64 `json:"memory_utilization"`
	MemoryUsage       uint64  `json:"memory_usage"`
	MemoryLimit       uint64  `json:"memory_limit"`
	NetworkRxBytes    uint64  `json:"network_rx_bytes"`
	NetworkTxBytes    uint64  `json:"network_tx_bytes"`
	BlockReadBytes    uint64  `json:"block_read_bytes"`
	BlockWriteBytes   uint64  `json:"block_write_bytes"`
}

// ContainerSummary describes a container known to the runtime.
type ContainerSummary struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Image    string             `json:"image"`
	Created  time.Time          `json:"created"`
	Started  *time.Time         `json:"started,omitempty"`
	Finished *time.Time         `json:"finished,omitempty"`
	State    ContainerState     `json:"state"`
	StateRaw string             `json:"state_raw,omitempty"` // set when State is unknown
	Command  string             `json:"command,omitempty"`
	Ports    []ContainerPort    `json:"ports,omitempty"`
	Volumes  []ContainerVolume  `json:"volumes,omitempty"`
	Networks []ContainerNetwork `json:"networks,omitempty"`
	Labels   map[string]string  `json:"labels,omitempty"`
}

// LogLine is a single timestamped line of container output.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}
