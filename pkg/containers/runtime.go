// Package containers reads container state, logs and statistics from the
// local container runtime.
package containers

import (
	"context"
	"errors"

	"fleetwatch/pkg/models"
)

var (
	// ErrNotFound is returned when the runtime does not know the container.
	ErrNotFound = errors.New("container not found")

	// ErrUnavailable is returned when the runtime cannot be reached.
	ErrUnavailable = errors.New("container runtime unavailable")
)

// LogOptions selects which log lines a stream yields.
type LogOptions struct {
	Follow bool
	// Tail limits the backlog to the last N lines. Zero means all lines.
	Tail int
}

// Runtime is the contract the agent needs from a container engine.
// Streams stay open until the context is cancelled or Close is called.
type Runtime interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]models.ContainerSummary, error)
	Inspect(ctx context.Context, id string) (models.ContainerSummary, error)
	Logs(ctx context.Context, id string, opts LogOptions) (*LogStream, error)
	Stats(ctx context.Context, id string) (*StatsStream, error)
}
