package agent

import (
	"errors"
	"net/http"

	"fleetwatch/pkg/log"
	"fleetwatch/pkg/server"
	"fleetwatch/pkg/snapshot"

	"github.com/labstack/echo/v4"
)

func (s *Server) getOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshot.Overview())
}

func (s *Server) getSystem(c echo.Context) error {
	system, err := s.snapshot.System()
	if err != nil {
		return notCollected(c, "system", err)
	}
	return c.JSON(http.StatusOK, system)
}

func (s *Server) getMemory(c echo.Context) error {
	memory, err := s.snapshot.Memory()
	if err != nil {
		return notCollected(c, "memory", err)
	}
	return c.JSON(http.StatusOK, memory)
}

func (s *Server) getCPU(c echo.Context) error {
	cpu, err := s.snapshot.CPU()
	if err != nil {
		return notCollected(c, "cpu", err)
	}
	return c.JSON(http.StatusOK, cpu)
}

func (s *Server) listDisks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshot.Disks())
}

func (s *Server) getDisk(c echo.Context) error {
	name, err := requiredQuery(c, "name")
	if err != nil {
		return err
	}
	disk, err := s.snapshot.Disk(name)
	if err != nil {
		return server.JSONError(c, http.StatusNotFound, "disk not found")
	}
	return c.JSON(http.StatusOK, disk)
}

func (s *Server) listVolumes(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshot.Volumes())
}

func (s *Server) getVolume(c echo.Context) error {
	name, err := requiredQuery(c, "name")
	if err != nil {
		return err
	}
	volume, err := s.snapshot.Volume(name)
	if err != nil {
		return server.JSONError(c, http.StatusNotFound, "volume not found")
	}
	return c.JSON(http.StatusOK, volume)
}

func (s *Server) listNetworkInterfaces(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshot.Network())
}

func (s *Server) getNetworkInterface(c echo.Context) error {
	name, err := requiredQuery(c, "name")
	if err != nil {
		return err
	}
	nic, err := s.snapshot.NetworkInterface(name)
	if err != nil {
		return server.JSONError(c, http.StatusNotFound, "network interface not found")
	}
	return c.JSON(http.StatusOK, nic)
}

func (s *Server) listContainers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.snapshot.Containers())
}

func (s *Server) getContainer(c echo.Context) error {
	id, err := requiredQuery(c, "id")
	if err != nil {
		return err
	}
	container, err := s.snapshot.Container(id)
	if err != nil {
		return server.JSONError(c, http.StatusNotFound, "container not found")
	}
	return c.JSON(http.StatusOK, container)
}

// requiredQuery returns the named query parameter or writes a 400.
func requiredQuery(c echo.Context, name string) (string, error) {
	value := c.QueryParam(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	return value, nil
}

func notCollected(c echo.Context, subsystem string, err error) error {
	if errors.Is(err, snapshot.ErrNotCollected) {
		return server.JSONError(c, http.StatusServiceUnavailable, subsystem+" not collected yet")
	}
	log.Error().Err(err).Str("subsystem", subsystem).Msg("Snapshot read failed")
	return server.JSONError(c, http.StatusInternalServerError, "failed to read "+subsystem)
}
