package agent

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"fleetwatch/pkg/containers"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/server"

	"github.com/labstack/echo/v4"
)

// streamContainerLogs relays runtime log lines until the runtime ends the
// stream or the client disconnects.
func (s *Server) streamContainerLogs(c echo.Context) error {
	runtime, id, err := s.streamTarget(c)
	if err != nil {
		return err
	}

	opts := containers.LogOptions{}
	if raw := c.QueryParam("follow"); raw != "" {
		if opts.Follow, err = strconv.ParseBool(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "follow must be a boolean")
		}
	}
	if raw := c.QueryParam("tail"); raw != "" {
		if opts.Tail, err = strconv.Atoi(raw); err != nil || opts.Tail < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "tail must be a non-negative integer")
		}
	}

	ctx := c.Request().Context()
	stream, err := runtime.Logs(ctx, id, opts)
	if err != nil {
		return runtimeError(c, id, err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	return server.StreamNDJSON(c, stream.Lines())
}

// streamContainerStatistics relays runtime samples until the client
// disconnects.
func (s *Server) streamContainerStatistics(c echo.Context) error {
	runtime, id, err := s.streamTarget(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	stream, err := runtime.Stats(ctx, id)
	if err != nil {
		return runtimeError(c, id, err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	return server.StreamNDJSON(c, stream.Samples())
}

// streamTarget resolves the runtime and the container id. Names known to
// the snapshot are translated to ids.
func (s *Server) streamTarget(c echo.Context) (containers.Runtime, string, error) {
	id, err := requiredQuery(c, "id")
	if err != nil {
		return nil, "", err
	}

	runtime := s.snapshot.Runtime()
	if runtime == nil {
		return nil, "", echo.NewHTTPError(http.StatusNotFound, "container not found")
	}

	if summary, err := s.snapshot.Container(id); err == nil {
		id = summary.ID
	}
	return runtime, id, nil
}

func runtimeError(c echo.Context, id string, err error) error {
	switch {
	case errors.Is(err, containers.ErrNotFound):
		return server.JSONError(c, http.StatusNotFound, "container not found")
	case errors.Is(err, containers.ErrUnavailable):
		return server.JSONError(c, http.StatusServiceUnavailable, "container runtime unavailable")
	default:
		log.Error().Err(err).Str("container", id).Msg("Container runtime request failed")
		return server.JSONError(c, http.StatusBadGateway, "container runtime error")
	}
}
