package control

import (
	"net/http"

	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
)

// Operation names. They are what no_auth_operations refers to.
const (
	OpHealth                     = "Health"
	OpRegisterMachine            = "RegisterMachine"
	OpDescribeMachine            = "DescribeMachine"
	OpListMachines               = "ListMachines"
	OpRemoveMachine              = "RemoveMachine"
	OpDescribeMachineUtilization = "DescribeMachineUtilization"
	OpCheckMachineStatus         = "CheckMachineStatus"
	OpStreamMachineContainerLogs = "StreamMachineContainerLogs"
	OpCreateGroup                = "CreateGroup"
	OpDescribeGroup              = "DescribeGroup"
	OpListGroups                 = "ListGroups"
	OpDeleteGroup                = "DeleteGroup"
	OpMetrics                    = "Metrics"
)

// Operations lists every operation the control plane serves.
func (s *Server) Operations() []operation.Operation {
	return []operation.Operation{
		{Name: OpHealth, Method: http.MethodGet, Path: "/health", Handler: s.base.Health},
		{Name: OpRegisterMachine, Method: http.MethodPost, Path: "/machines", Handler: s.registerMachine},
		{Name: OpListMachines, Method: http.MethodGet, Path: "/machines", Handler: s.listMachines},
		{Name: OpDescribeMachine, Method: http.MethodGet, Path: "/machines/:id", Handler: s.describeMachine},
		{Name: OpRemoveMachine, Method: http.MethodDelete, Path: "/machines/:id", Handler: s.removeMachine},
		{Name: OpDescribeMachineUtilization, Method: http.MethodGet, Path: "/machines/:id/utilization", Handler: s.describeUtilization},
		{Name: OpCheckMachineStatus, Method: http.MethodPost, Path: "/machines/:id/status", Handler: s.checkStatus},
		{Name: OpStreamMachineContainerLogs, Method: http.MethodGet, Path: "/machines/:id/containers/:container/logs", Handler: s.streamContainerLogs},
		{Name: OpCreateGroup, Method: http.MethodPost, Path: "/groups", Handler: notImplemented},
		{Name: OpListGroups, Method: http.MethodGet, Path: "/groups", Handler: notImplemented},
		{Name: OpDescribeGroup, Method: http.MethodGet, Path: "/groups/:name", Handler: notImplemented},
		{Name: OpDeleteGroup, Method: http.MethodDelete, Path: "/groups/:name", Handler: notImplemented},
		{Name: OpMetrics, Method: http.MethodGet, Path: "/metrics", Handler: echo.WrapHandler(s.metrics.Handler())},
	}
}
