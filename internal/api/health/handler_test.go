package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	name string
	err  error
}

func (c *fakeChecker) Name() string                    { return c.name }
func (c *fakeChecker) Check(ctx context.Context) error { return c.err }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	handler := NewHandler()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeHealth(t, rec)
	if !resp.OK || resp.Status != "ok" {
		t.Errorf("response = %+v, want ok/ok", resp)
	}
}

func TestLive(t *testing.T) {
	handler := NewHandler()

	req := httptest.NewRequest("GET", "/health/live", nil)
	rec := httptest.NewRecorder()
	handler.Live(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decodeHealth(t, rec); resp.Status != "live" {
		t.Errorf("status = %q, want 'live'", resp.Status)
	}
}

func TestReady_AllHealthy(t *testing.T) {
	handler := NewHandler()
	handler.RegisterChecker(&fakeChecker{name: "sqlite"})
	handler.RegisterChecker(&fakeChecker{name: "clickhouse"})

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeHealth(t, rec)
	if !resp.OK || resp.Status != "ready" {
		t.Errorf("response = %+v, want ready", resp)
	}
	if resp.Checks["sqlite"] != "ok" || resp.Checks["clickhouse"] != "ok" {
		t.Errorf("checks = %v, want all ok", resp.Checks)
	}
}

func TestReady_FailingChecker(t *testing.T) {
	handler := NewHandler()
	handler.RegisterChecker(&fakeChecker{name: "sqlite"})
	handler.RegisterChecker(&fakeChecker{name: "clickhouse", err: fmt.Errorf("dial tcp: connection refused")})

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decodeHealth(t, rec)
	if resp.OK || resp.Status != "not_ready" {
		t.Errorf("response = %+v, want not_ready", resp)
	}
	if resp.Checks["clickhouse"] != "dial tcp: connection refused" {
		t.Errorf("clickhouse check = %q, want the error text", resp.Checks["clickhouse"])
	}
}

func TestReady_NoCheckers(t *testing.T) {
	handler := NewHandler()

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
