// Package server holds the HTTP lifecycle shared by the agent and control
// daemons: echo setup, graceful shutdown, the optional debug listener and
// response helpers.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetwatch/pkg/auth"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"
	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second

	// DebugOperation is the operation name guarding the pprof listener.
	DebugOperation = "Debug"
)

// Server wraps an echo instance with the daemon lifecycle.
type Server struct {
	name       string
	version    string
	echo       *echo.Echo
	authorizer auth.Authorizer
	debugAddr  string
	debug      *http.Server
	logger     zerolog.Logger
	onShutdown []func(context.Context)
}

// New creates a server named after the daemon. A non-empty debugAddr starts
// a pprof listener guarded by authorizer.
func New(name, version string, authorizer auth.Authorizer, debugAddr string) *Server {
	s := &Server{
		name:       name,
		version:    version,
		echo:       echo.New(),
		authorizer: authorizer,
		debugAddr:  debugAddr,
		logger:     log.Component(name),
	}
	s.setupEcho()
	return s
}

// Echo exposes the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Mount registers operations through the pipeline.
func (s *Server) Mount(pipeline *operation.Pipeline, ops ...operation.Operation) {
	pipeline.Register(s.echo, ops...)
}

// OnShutdown registers a hook run after the listener has stopped.
func (s *Server) OnShutdown(hook func(context.Context)) {
	s.onShutdown = append(s.onShutdown, hook)
}

// Health answers the unauthenticated health operation.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Service: s.name,
		Version: s.version,
	})
}

// Start serves on addr and blocks until SIGINT or SIGTERM, then shuts down.
func (s *Server) Start(addr string) error {
	s.startDebug()

	go func() {
		s.logger.Info().
			Str("addr", addr).
			Str("version", s.version).
			Msg("Starting server")

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

// Shutdown stops the listeners and runs the shutdown hooks.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.debug != nil {
		if err := s.debug.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Debug listener shutdown failed")
		}
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	for _, hook := range s.onShutdown {
		hook(ctx)
	}

	s.logger.Info().Msg("Server gracefully stopped")
	return nil
}

func (s *Server) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Warn().Err(v.Error)
			}
			event.
				Str("operation", operation.Name(c)).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Str("remote", v.RemoteIP).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
}

// handleError renders every handler error with the standard error body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(status)
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	} else {
		s.logger.Error().Err(err).Str("operation", operation.Name(c)).Msg("Unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = JSONError(c, status, message)
}

// DebugHandler returns the pprof handlers behind the authorizer.
func (s *Server) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return auth.HTTPMiddleware(s.authorizer, DebugOperation, nil)(mux)
}

func (s *Server) startDebug() {
	if s.debugAddr == "" {
		return
	}

	s.debug = &http.Server{
		Addr:              s.debugAddr,
		Handler:           s.DebugHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		s.logger.Info().Str("addr", s.debugAddr).Msg("Starting pprof server")
		if err := s.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Debug listener failed")
		}
	}()
}
