// Package agent serves the per-host telemetry RPC surface.
package agent

import (
	"context"
	"time"

	"fleetwatch/pkg/auth"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/operation"
	"fleetwatch/pkg/server"
	"fleetwatch/pkg/snapshot"
	"fleetwatch/pkg/telemetry"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies the agent in health answers and logs.
const ServiceName = "fleet-agent"

// Server exposes a snapshot controller over HTTP.
type Server struct {
	base     *server.Server
	snapshot *snapshot.Controller
	metrics  *telemetry.Metrics
}

// NewServer wires every operation behind the authorization pipeline. The
// metrics decorator sees every call, tracing only authorized ones.
func NewServer(cfg config.Server, snap *snapshot.Controller, tp trace.TracerProvider, version string) *Server {
	authorizer := auth.NewController(cfg.AllowedKeys, cfg.NoAuthOperations)

	s := &Server{
		base:     server.New(ServiceName, version, authorizer, cfg.DebugAddr),
		snapshot: snap,
		metrics:  telemetry.NewMetrics(),
	}
	s.registerSnapshotMetrics()

	pipeline := operation.NewPipeline(auth.Decorator(authorizer, nil)).
		Outer(s.metrics.Decorator()).
		Inner(telemetry.Tracing(tp))
	s.base.Mount(pipeline, s.Operations()...)

	return s
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.base.Echo()
}

// OnShutdown registers a hook run once the listener has stopped.
func (s *Server) OnShutdown(hook func(context.Context)) {
	s.base.OnShutdown(hook)
}

// Start serves on addr until the process is signalled.
func (s *Server) Start(addr string) error {
	return s.base.Start(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.base.Shutdown()
}

func (s *Server) registerSnapshotMetrics() {
	s.metrics.Registry().MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fleetwatch",
			Subsystem: "snapshot",
			Name:      "generation",
			Help:      "Number of committed snapshot refreshes.",
		}, func() float64 {
			return float64(s.snapshot.Generation())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fleetwatch",
			Subsystem: "snapshot",
			Name:      "age_seconds",
			Help:      "Seconds since the last committed refresh.",
		}, func() float64 {
			return time.Since(s.snapshot.RefreshedAt()).Seconds()
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fleetwatch",
			Subsystem: "snapshot",
			Name:      "containers_enabled",
			Help:      "1 when container collection is active.",
		}, func() float64 {
			if s.snapshot.ContainersEnabled() {
				return 1
			}
			return 0
		}),
	)
}
