package models

import "time"

// HealthStatus is returned by the unauthenticated health operation of both
// services.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// AgentStatus records the outcome of probing an agent endpoint.
type AgentStatus struct {
	Endpoint  string    `json:"endpoint"`
	Online    bool      `json:"online"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
	Latency   int64     `json:"latency_ms"`
}
