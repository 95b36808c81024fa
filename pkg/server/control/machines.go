package control

import (
	"context"
	"net/http"

	"fleetwatch/pkg/models"
	"fleetwatch/pkg/server"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerMachine(c echo.Context) error {
	var req models.RegisterMachineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m, err := s.machines.Register(c.Request().Context(), req.Address, req.Group)
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (s *Server) listMachines(c echo.Context) error {
	machines, err := s.machines.List(c.Request().Context())
	if err != nil {
		return failure(c, err)
	}
	if machines == nil {
		machines = []models.Machine{}
	}
	return c.JSON(http.StatusOK, machines)
}

func (s *Server) describeMachine(c echo.Context) error {
	m, err := s.machines.Describe(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) removeMachine(c echo.Context) error {
	if err := s.machines.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return failure(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) describeUtilization(c echo.Context) error {
	utilization, err := s.machines.Utilization(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, utilization)
}

func (s *Server) checkStatus(c echo.Context) error {
	status, err := s.machines.CheckStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// streamContainerLogs relays the agent's log stream until either side goes
// away.
func (s *Server) streamContainerLogs(c echo.Context) error {
	ctx := c.Request().Context()
	stream, err := s.machines.ContainerLogs(ctx, c.Param("id"), c.Param("container"))
	if err != nil {
		return failure(c, err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	return server.StreamNDJSON(c, stream.Lines())
}
