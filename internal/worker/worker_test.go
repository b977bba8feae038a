package worker

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/lattani/trackwright/internal/config"
	"github.com/lattani/trackwright/internal/scheduler"
)

func testWorker(t *testing.T) *Worker {
	t.Helper()
	cfg := config.SchedulerConfig{}
	sch := scheduler.New(nil, nil, nil, nil, nil, cfg, nil)
	return New(nil, sch, Config{Port: 0}, nil)
}

func TestHandleHealthz_OKWhileNotShuttingDown(t *testing.T) {
	w := testWorker(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rw := httptest.NewRecorder()

	w.handleHealthz(rw, req)

	if rw.Code != 200 {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestHandleHealthz_UnavailableWhileShuttingDown(t *testing.T) {
	w := testWorker(t)
	w.sched.Status().SetShuttingDown(true)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rw := httptest.NewRecorder()
	w.handleHealthz(rw, req)

	if rw.Code != 503 {
		t.Fatalf("expected 503 while shutting down, got %d", rw.Code)
	}
}

func TestHandleReadyz_UnavailableBeforeLeaderElection(t *testing.T) {
	w := testWorker(t)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rw := httptest.NewRecorder()
	w.handleReadyz(rw, req)
	if rw.Code != 503 {
		t.Fatalf("expected 503 before leader election, got %d", rw.Code)
	}

	// Holding the leader lock alone isn't sufficient: readyz also requires
	// at least one scheduler loop to have started, which only RunAll sets.
	w.sched.Status().SetLeaderHeld(true)
	rw = httptest.NewRecorder()
	w.handleReadyz(rw, req)
	if rw.Code != 503 {
		t.Fatalf("expected 503 until a scheduler loop has started, got %d", rw.Code)
	}
}

func TestHandleMetrics_ReportsCountersAsJSON(t *testing.T) {
	w := testWorker(t)
	w.sched.Status().SetLeaderHeld(true)
	w.sched.Status().incActiveJobs()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	w.handleMetrics(rw, req)

	var body metricsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode metrics response: %v", err)
	}
	if body.LockHeld != 1 {
		t.Errorf("expected lock_held=1, got %d", body.LockHeld)
	}
	if body.ActiveJobs != 1 {
		t.Errorf("expected active_jobs=1, got %d", body.ActiveJobs)
	}
}

func TestPromHandler_ExposesLeaderGauge(t *testing.T) {
	w := testWorker(t)
	w.sched.Status().SetLeaderHeld(true)

	req := httptest.NewRequest("GET", "/metrics/prom", nil)
	rw := httptest.NewRecorder()
	w.promHandler().ServeHTTP(rw, req)

	if rw.Code != 200 {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "trackwright_worker_leader 1") {
		t.Errorf("expected leader gauge to report 1, body:\n%s", rw.Body.String())
	}
}

func TestListen_FallsBackToPortPlusOneWhenPortIsTaken(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("occupy a port: %v", err)
	}
	defer occupied.Close()

	_, portStr, err := net.SplitHostPort(occupied.Addr().String())
	if err != nil {
		t.Fatalf("split occupied address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse occupied port: %v", err)
	}

	w := testWorker(t)
	w.cfg.Port = port

	ln, err := w.listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, gotPort, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split listener address: %v", err)
	}
	if gotPort != strconv.Itoa(port+1) {
		t.Fatalf("expected fallback to port %d, got %s", port+1, gotPort)
	}
}
