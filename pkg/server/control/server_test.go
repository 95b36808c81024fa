package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fleetwatch/pkg/agentclient"
	"fleetwatch/pkg/auth"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/inventory"
	"fleetwatch/pkg/machine"
	"fleetwatch/pkg/models"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	controlKey = "control-key"
	agentKey   = "agent-key"
)

// stubMachines fails every call with err.
type stubMachines struct {
	err error
}

func (f stubMachines) Register(context.Context, string, string) (*models.Machine, error) {
	return nil, f.err
}
func (f stubMachines) Describe(context.Context, string) (*models.Machine, error) { return nil, f.err }
func (f stubMachines) List(context.Context) ([]models.Machine, error)            { return nil, f.err }
func (f stubMachines) Remove(context.Context, string) error                      { return f.err }
func (f stubMachines) Utilization(context.Context, string) (*models.MachineUtilization, error) {
	return nil, f.err
}
func (f stubMachines) CheckStatus(context.Context, string) (*models.AgentStatus, error) {
	return nil, f.err
}
func (f stubMachines) ContainerLogs(context.Context, string, string) (*agentclient.LogStream, error) {
	return nil, f.err
}

// ControlServerTestSuite drives the control routes against a real machine
// service, a file-backed inventory and a fake agent.
type ControlServerTestSuite struct {
	suite.Suite
	tempDir string
	store   *inventory.Store
	agent   *httptest.Server
	healthy atomic.Bool
	server  *Server
}

func (s *ControlServerTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "control-server-test-*")
	s.Require().NoError(err)

	s.store, err = inventory.NewStore(filepath.Join(s.tempDir, "control.db"))
	s.Require().NoError(err)

	s.healthy.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("/overview", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(auth.HeaderName) != "Bearer "+agentKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.OverviewSummary{
			System: &models.SystemSummary{Hostname: "h1", OS: "linux"},
			CPU:    &models.CPUSummary{Cores: 8, CoreUsage: []models.CoreSummary{{Name: "cpu0", Usage: 50}}},
			Memory: &models.MemorySummary{Memory: models.MemoryUsage{Total: 16000000000, Used: 1000}},
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if !s.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(models.HealthStatus{Status: "ok", Service: "fleet-agent"})
	})
	mux.HandleFunc("/container/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "web" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "container not found"})
			return
		}
		encoder := json.NewEncoder(w)
		_ = encoder.Encode(models.LogLine{Line: "first"})
		_ = encoder.Encode(models.LogLine{Line: "second"})
	})
	s.agent = httptest.NewServer(mux)

	registry := agentclient.NewRegistry(config.AgentClient{Key: agentKey, RequestTimeout: 2 * time.Second})
	service := machine.NewService(s.store, registry, nil)
	s.server = s.newServer(service)
}

func (s *ControlServerTestSuite) TearDownTest() {
	s.agent.Close()
	s.store.Close()
	os.RemoveAll(s.tempDir)
}

func (s *ControlServerTestSuite) newServer(machines Machines) *Server {
	cfg := config.Server{AllowedKeys: []string{controlKey}, NoAuthOperations: []string{OpHealth}}
	return NewServer(cfg, machines, noop.NewTracerProvider(), "test")
}

func (s *ControlServerTestSuite) do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(auth.HeaderName, "Bearer "+controlKey)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func (s *ControlServerTestSuite) register(group string) models.Machine {
	body := fmt.Sprintf(`{"address":%q,"group":%q}`, s.agent.URL, group)
	rec := s.do(s.server, http.MethodPost, "/machines", body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var m models.Machine
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func (s *ControlServerTestSuite) errorBody(rec *httptest.ResponseRecorder) string {
	var body models.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func (s *ControlServerTestSuite) TestHealthIsExempt() {
	rec := httptest.NewRecorder()
	s.server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *ControlServerTestSuite) TestHealthExemptWithCustomNoAuthOperations() {
	for _, noAuth := range [][]string{{"Metrics"}, {}} {
		cfg := config.Server{AllowedKeys: []string{controlKey}, NoAuthOperations: noAuth}
		srv := NewServer(cfg, &stubMachines{}, noop.NewTracerProvider(), "test")

		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		s.Equal(http.StatusOK, rec.Code, noAuth)

		rec = httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/machines", nil))
		s.Equal(http.StatusUnauthorized, rec.Code, noAuth)
	}
}

func (s *ControlServerTestSuite) TestMachinesRequireCredential() {
	rec := httptest.NewRecorder()
	s.server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/machines", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", s.errorBody(rec))
}

func (s *ControlServerTestSuite) TestRegisterDescribeRemove() {
	m := s.register("prod")
	s.Regexp(`^m-[0-9a-f]{32}$`, m.ID)
	s.Equal("prod", m.Group)
	s.Require().NotNil(m.CPU)
	s.Equal(uint64(8), m.CPU.Cores)

	rec := s.do(s.server, http.MethodGet, "/machines/"+m.ID, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var described models.Machine
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &described))
	s.Equal(m.ID, described.ID)
	s.Equal(m.System, described.System)

	rec = s.do(s.server, http.MethodGet, "/machines", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []models.Machine
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Len(list, 1)

	s.Equal(http.StatusNoContent, s.do(s.server, http.MethodDelete, "/machines/"+m.ID, "").Code)
	s.Equal(http.StatusNotFound, s.do(s.server, http.MethodGet, "/machines/"+m.ID, "").Code)
	s.Equal(http.StatusNotFound, s.do(s.server, http.MethodDelete, "/machines/"+m.ID, "").Code)

	rec = s.do(s.server, http.MethodGet, "/machines", "")
	s.JSONEq(`[]`, rec.Body.String())
}

func (s *ControlServerTestSuite) TestRegisterRejectsBadInput() {
	s.Equal(http.StatusBadRequest, s.do(s.server, http.MethodPost, "/machines", `{"address":"","group":"prod"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(s.server, http.MethodPost, "/machines", `{not json`).Code)
}

func (s *ControlServerTestSuite) TestRegisterUnreachableAgent() {
	rec := s.do(s.server, http.MethodPost, "/machines", `{"address":"127.0.0.1:1","group":"prod"}`)
	s.Equal(http.StatusBadGateway, rec.Code)
	s.NotEmpty(s.errorBody(rec))
}

func (s *ControlServerTestSuite) TestUtilization() {
	m := s.register("prod")

	rec := s.do(s.server, http.MethodGet, "/machines/"+m.ID+"/utilization", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var utilization models.MachineUtilization
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &utilization))
	s.Equal(m.ID, utilization.MachineID)
	s.Require().Len(utilization.Cores, 1)
	s.Equal(uint64(16000000000), utilization.Memory.Total)
}

func (s *ControlServerTestSuite) TestCheckStatus() {
	m := s.register("prod")

	rec := s.do(s.server, http.MethodPost, "/machines/"+m.ID+"/status", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var status models.AgentStatus
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &status))
	s.True(status.Online)

	s.healthy.Store(false)
	rec = s.do(s.server, http.MethodPost, "/machines/"+m.ID+"/status", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &status))
	s.False(status.Online)
	s.NotEmpty(status.LastError)
}

func (s *ControlServerTestSuite) TestContainerLogsProxy() {
	m := s.register("prod")

	rec := s.do(s.server, http.MethodGet, "/machines/"+m.ID+"/containers/web/logs", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var line models.LogLine
		s.Require().NoError(json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line.Line)
	}
	s.Equal([]string{"first", "second"}, lines)

	s.Equal(http.StatusNotFound, s.do(s.server, http.MethodGet, "/machines/"+m.ID+"/containers/db/logs", "").Code)
}

func (s *ControlServerTestSuite) TestGroupStubs() {
	cases := []struct{ method, path string }{
		{http.MethodPost, "/groups"},
		{http.MethodGet, "/groups"},
		{http.MethodGet, "/groups/prod"},
		{http.MethodDelete, "/groups/prod"},
	}
	for _, tc := range cases {
		rec := s.do(s.server, tc.method, tc.path, "")
		s.Equal(http.StatusNotImplemented, rec.Code, tc.path)
		s.Equal("not implemented", s.errorBody(rec))
	}
}

func (s *ControlServerTestSuite) TestErrorMapping() {
	cases := []struct {
		err  error
		code int
	}{
		{machine.ErrInvalidInput, http.StatusBadRequest},
		{machine.ErrNoSummary, http.StatusBadRequest},
		{machine.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: dial tcp", machine.ErrUnreachable), http.StatusBadGateway},
		{fmt.Errorf("%w: disk I/O error", machine.ErrPersistence), http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv := s.newServer(stubMachines{err: tc.err})
		rec := s.do(srv, http.MethodGet, "/machines/m-1", "")
		s.Equal(tc.code, rec.Code, tc.err.Error())
	}
}

func (s *ControlServerTestSuite) TestPersistenceDetailNotLeaked() {
	srv := s.newServer(stubMachines{err: fmt.Errorf("%w: step cpu: disk I/O error", machine.ErrPersistence)})
	rec := s.do(srv, http.MethodGet, "/machines", "")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("internal error", s.errorBody(rec))
}

func (s *ControlServerTestSuite) TestMetricsCountOperations() {
	s.register("prod")

	rec := s.do(s.server, http.MethodGet, "/metrics", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `fleetwatch_operation_requests_total{code="201",operation="RegisterMachine"} 1`)
}

func TestControlServerTestSuite(t *testing.T) {
	suite.Run(t, new(ControlServerTestSuite))
}
