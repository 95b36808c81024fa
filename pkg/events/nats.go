package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetwatch/pkg/log"

	"github.com/nats-io/nats.go"
)

const (
	clientName    = "fleetwatch-control"
	reconnectWait = 2 * time.Second
	drainTimeout  = 5 * time.Second
)

// NATSPublisher publishes events as JSON on NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url. The connection reconnects forever once
// established.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	logger := log.Component("events")
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("prefix", prefix).Msg("Event publisher connected")
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Publish encodes the event and sends it on "<prefix>.<kind>".
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Kind, err)
	}
	return p.nc.Publish(Subject(p.prefix, event.Kind), payload)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed")
		p.nc.Close()
	}
}
