package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TelemetryTestSuite tests the metrics and tracing decorators.
type TelemetryTestSuite struct {
	suite.Suite
	metrics  *Metrics
	recorder *tracetest.SpanRecorder
	echo     *echo.Echo
}

func (s *TelemetryTestSuite) SetupTest() {
	s.metrics = NewMetrics()
	s.recorder = tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))

	deny := func(op string, next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" && op != "Health" {
				return c.NoContent(http.StatusUnauthorized)
			}
			return next(c)
		}
	}

	s.echo = echo.New()
	operation.NewPipeline(deny).
		Outer(s.metrics.Decorator()).
		Inner(Tracing(provider)).
		Register(s.echo,
			operation.Operation{Name: "Health", Method: http.MethodGet, Path: "/health", Handler: func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			}},
			operation.Operation{Name: "GetSystem", Method: http.MethodGet, Path: "/system", Handler: func(c echo.Context) error {
				return c.String(http.StatusOK, "{}")
			}},
			operation.Operation{Name: "GetDisk", Method: http.MethodGet, Path: "/disk", Handler: func(echo.Context) error {
				return echo.NewHTTPError(http.StatusNotFound, "disk not found")
			}},
			operation.Operation{Name: "ListVolumes", Method: http.MethodGet, Path: "/volumes", Handler: func(echo.Context) error {
				return errors.New("boom")
			}},
		)
}

func (s *TelemetryTestSuite) call(path string, authorized bool) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer k")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec.Code
}

func (s *TelemetryTestSuite) scrape() string {
	rec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	s.Require().NoError(err)
	return string(body)
}

func (s *TelemetryTestSuite) TestMetricsCountDeniedCalls() {
	s.Equal(http.StatusUnauthorized, s.call("/system", false))
	s.Equal(http.StatusOK, s.call("/system", true))
	s.Equal(http.StatusOK, s.call("/health", false))

	body := s.scrape()
	s.Contains(body, `fleetwatch_operation_requests_total{code="401",operation="GetSystem"} 1`)
	s.Contains(body, `fleetwatch_operation_requests_total{code="200",operation="GetSystem"} 1`)
	s.Contains(body, `fleetwatch_operation_requests_total{code="200",operation="Health"} 1`)
	s.Contains(body, `fleetwatch_operation_duration_seconds_count{operation="GetSystem"} 2`)
}

func (s *TelemetryTestSuite) TestMetricsUseErrorStatus() {
	s.Equal(http.StatusNotFound, s.call("/disk", true))
	s.Equal(http.StatusInternalServerError, s.call("/volumes", true))

	body := s.scrape()
	s.Contains(body, `fleetwatch_operation_requests_total{code="404",operation="GetDisk"} 1`)
	s.Contains(body, `fleetwatch_operation_requests_total{code="500",operation="ListVolumes"} 1`)
}

func (s *TelemetryTestSuite) TestDeniedCallsAreNotTraced() {
	s.call("/system", false)
	s.Empty(s.recorder.Ended())
}

func (s *TelemetryTestSuite) TestSpanPerOperation() {
	s.call("/system", true)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal("GetSystem", spans[0].Name())
	s.Contains(spans[0].Attributes(), attribute.Int("http.status_code", http.StatusOK))
	s.Contains(spans[0].Attributes(), attribute.String("operation", "GetSystem"))
	s.Equal(codes.Unset, spans[0].Status().Code)
}

func (s *TelemetryTestSuite) TestSpanRecordsErrors() {
	s.call("/volumes", true)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal(codes.Error, spans[0].Status().Code)
	s.Equal("boom", spans[0].Status().Description)
	s.NotEmpty(spans[0].Events())
}

func (s *TelemetryTestSuite) TestInitTracerDisabled() {
	provider, shutdown, err := InitTracer("fleet-agent", false)
	s.Require().NoError(err)
	s.NotNil(provider)
	s.NoError(shutdown(s.T().Context()))
}

func TestTelemetryTestSuite(t *testing.T) {
	suite.Run(t, new(TelemetryTestSuite))
}
