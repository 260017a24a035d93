package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type echoHandler struct{}

type qtyRequest struct {
	Qty  float64 `json:"qty" validate:"gte=0"`
	Kind string  `json:"kind" default:"stock" validate:"oneof=stock fund"`
}

func (echoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/qty", func(c echo.Context) error {
		req := &qtyRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/boom", func(c echo.Context) error {
		return AppErrorResponse(c, BadGatewayError("provider down"))
	})
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithHost("127.0.0.1"), WithPort(0)}, opts...)
	s := NewServer([]Handler{echoHandler{}}, opts...)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestStartBindsAndReportsAddr(t *testing.T) {
	s := newTestServer(t)
	if s.Addr() != "" {
		t.Fatalf("expected empty addr before start")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// a second server on the same port must fail synchronously
	_, portStr, _ := net.SplitHostPort(s.Addr())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	other := NewServer(nil, WithHost("127.0.0.1"), WithPort(port))
	if err := other.Start(); err == nil {
		_ = other.Stop(context.Background())
		t.Fatalf("expected bind error")
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var env struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if env.Status != http.StatusNotFound || len(env.Data) != 1 || env.Data[0].Code != CodeNotFound {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestAppErrorResponse(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), CodeUpstream) {
		t.Fatalf("unexpected reply %d %s", rec.Code, rec.Body.String())
	}
}

func TestValidationUsesWireNames(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/qty", strings.NewReader(`{"qty":-1,"kind":"bond"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var env struct {
		Data []ValidationError `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	fields := map[string]string{}
	for _, e := range env.Data {
		fields[e.Field] = e.Code
	}
	if fields["qty"] != "ERR_GTE" || fields["kind"] != "ERR_ONEOF" {
		t.Fatalf("unexpected errors %+v", env.Data)
	}

	req = httptest.NewRequest(http.MethodPost, "/qty", strings.NewReader(`{"qty":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(s, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"kind":"stock"`) {
		t.Fatalf("expected default applied, got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/qty", strings.NewReader(`{"qty":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(s, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), CodeMalformed) {
		t.Fatalf("expected malformed body error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, WithCORS(true, "http://localhost:5173"), WithMetrics(reg, "/metrics"), WithSlowThreshold(time.Second))

	req := httptest.NewRequest(http.MethodOptions, "/qty", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	rec := serve(s, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "http://localhost:5173" {
		t.Fatalf("unexpected preflight %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.example")
	rec = serve(s, req)
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("unexpected allow origin for foreign origin")
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected request metrics, got %d", rec.Code)
	}
}
