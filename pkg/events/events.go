// Package events publishes machine lifecycle notifications.
package events

import (
	"context"
	"errors"
	"time"

	"fleetwatch/pkg/config"
	"fleetwatch/pkg/models"
)

// Kind names a lifecycle transition. It is also the subject suffix.
type Kind string

const (
	KindRegistered Kind = "machine.registered"
	KindRemoved    Kind = "machine.removed"
	KindStatus     Kind = "machine.status"
)

var (
	// ErrNotConnected is returned when publishing on a closed connection.
	ErrNotConnected = errors.New("events: not connected")

	// ErrConnect is returned when the broker cannot be reached at startup.
	ErrConnect = errors.New("events: connect failed")
)

// Event is the JSON payload of every notification.
type Event struct {
	Kind      Kind                `json:"kind"`
	MachineID string              `json:"machine_id"`
	Group     string              `json:"group,omitempty"`
	Address   string              `json:"address,omitempty"`
	State     models.MachineState `json:"state,omitempty"`
	Time      time.Time           `json:"time"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() {}

// New returns a NATS publisher when a URL is configured and Noop otherwise.
func New(cfg config.Events) (Publisher, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}
	return NewNATSPublisher(cfg.NATSURL, cfg.Subject)
}

// Subject joins the configured prefix and the event kind.
func Subject(prefix string, kind Kind) string {
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}
