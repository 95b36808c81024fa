package agent

import (
	"net/http"

	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
)

// Operation names. They are what no_auth_operations refers to.
const (
	OpHealth                    = "Health"
	OpGetOverview               = "GetOverview"
	OpGetSystem                 = "GetSystem"
	OpGetMemory                 = "GetMemory"
	OpGetCPU                    = "GetCpu"
	OpGetDisk                   = "GetDisk"
	OpListDisks                 = "ListDisks"
	OpGetVolume                 = "GetVolume"
	OpListVolumes               = "ListVolumes"
	OpGetNetworkInterface       = "GetNetworkInterface"
	OpListNetworkInterfaces     = "ListNetworkInterfaces"
	OpGetContainer              = "GetContainer"
	OpListContainers            = "ListContainers"
	OpStreamContainerLogs       = "StreamContainerLogs"
	OpStreamContainerStatistics = "StreamContainerStatistics"
	OpMetrics                   = "Metrics"
)

// Operations lists every operation the agent serves.
func (s *Server) Operations() []operation.Operation {
	return []operation.Operation{
		{Name: OpHealth, Method: http.MethodGet, Path: "/health", Handler: s.base.Health},
		{Name: OpGetOverview, Method: http.MethodGet, Path: "/overview", Handler: s.getOverview},
		{Name: OpGetSystem, Method: http.MethodGet, Path: "/system", Handler: s.getSystem},
		{Name: OpGetMemory, Method: http.MethodGet, Path: "/memory", Handler: s.getMemory},
		{Name: OpGetCPU, Method: http.MethodGet, Path: "/cpu", Handler: s.getCPU},
		{Name: OpListDisks, Method: http.MethodGet, Path: "/disks", Handler: s.listDisks},
		{Name: OpGetDisk, Method: http.MethodGet, Path: "/disk", Handler: s.getDisk},
		{Name: OpListVolumes, Method: http.MethodGet, Path: "/volumes", Handler: s.listVolumes},
		{Name: OpGetVolume, Method: http.MethodGet, Path: "/volume", Handler: s.getVolume},
		{Name: OpListNetworkInterfaces, Method: http.MethodGet, Path: "/network-interfaces", Handler: s.listNetworkInterfaces},
		{Name: OpGetNetworkInterface, Method: http.MethodGet, Path: "/network-interface", Handler: s.getNetworkInterface},
		{Name: OpListContainers, Method: http.MethodGet, Path: "/containers", Handler: s.listContainers},
		{Name: OpGetContainer, Method: http.MethodGet, Path: "/container", Handler: s.getContainer},
		{Name: OpStreamContainerLogs, Method: http.MethodGet, Path: "/container/logs", Handler: s.streamContainerLogs},
		{Name: OpStreamContainerStatistics, Method: http.MethodGet, Path: "/container/statistics", Handler: s.streamContainerStatistics},
		{Name: OpMetrics, Method: http.MethodGet, Path: "/metrics", Handler: echo.WrapHandler(s.metrics.Handler())},
	}
}
