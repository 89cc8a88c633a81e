package status

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/memgate"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/workservice"
)

func newTestServer() *Server {
	var running atomic.Bool
	running.Store(true)
	reg := registry.New()
	reg.Register(workservice.ComputationDescriptor{ID: "c1"})
	p := pool.New(pool.Config{MaxWorkers: 10, MaxQueue: 10})
	gate := memgate.New(0.9, 1<<30)
	last := &failure.LastException{}
	return New(":0", 42, &running, p, reg, gate, last)
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body %q, got %q", "ok", w.Body.String())
	}
}

func TestHandleThreadzDumpsGoroutines(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/threadz", nil)
	w := httptest.NewRecorder()
	s.handleThreadz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected a non-empty goroutine dump")
	}
}

func TestHandleDashboardRendersRegisteredComputations(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	s.handleDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "c1") {
		t.Errorf("expected the dashboard to list the registered computation id, got: %s", body)
	}
}

func TestHandleDashboard404sOnUnknownPath(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/bogus", nil)
	w := httptest.NewRecorder()
	s.handleDashboard(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a path other than /, got %d", w.Code)
	}
}
