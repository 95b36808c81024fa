// Package control serves the control plane RPC surface.
package control

import (
	"context"
	"io"

	"fleetwatch/pkg/agentclient"
	"fleetwatch/pkg/auth"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"
	"fleetwatch/pkg/operation"
	"fleetwatch/pkg/server"
	"fleetwatch/pkg/telemetry"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies the control plane in health answers and logs.
const ServiceName = "fleet-control"

// Machines is the machine workflow the RPC surface drives.
type Machines interface {
	Register(ctx context.Context, endpoint, group string) (*models.Machine, error)
	Describe(ctx context.Context, id string) (*models.Machine, error)
	List(ctx context.Context) ([]models.Machine, error)
	Remove(ctx context.Context, id string) error
	Utilization(ctx context.Context, id string) (*models.MachineUtilization, error)
	CheckStatus(ctx context.Context, id string) (*models.AgentStatus, error)
	ContainerLogs(ctx context.Context, id, containerID string) (*agentclient.LogStream, error)
}

// Server exposes the machine workflow over HTTP.
type Server struct {
	base     *server.Server
	machines Machines
	metrics  *telemetry.Metrics
}

// NewServer wires every operation behind the authorization pipeline.
func NewServer(cfg config.Server, machines Machines, tp trace.TracerProvider, version string) *Server {
	authorizer := auth.NewController(cfg.AllowedKeys, cfg.NoAuthOperations)

	s := &Server{
		base:     server.New(ServiceName, version, authorizer, cfg.DebugAddr),
		machines: machines,
		metrics:  telemetry.NewMetrics(),
	}

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

// CloseOnShutdown closes c once the listener has stopped.
func (s *Server) CloseOnShutdown(name string, c io.Closer) {
	s.base.OnShutdown(func(context.Context) {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("resource", name).Msg("Close failed")
		}
	})
}

// Start serves on addr until the process is signalled.
func (s *Server) Start(addr string) error {
	return s.base.Start(addr)
}

// Shutdown stops the server and runs the shutdown hooks.
func (s *Server) Shutdown() error {
	return s.base.Shutdown()
}
