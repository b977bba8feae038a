// Package worker assembles the long-running worker process: a single
// cross-replica leader election over internal/lock's MAIN_SCHEDULER
// advisory lock, the scheduler loops it guards, and the HTTP control
// surface (health/readiness/status/metrics). The HTTP surface serves while
// Run runs and is shut down when Run returns, including when another replica
// holds the lock.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lattani/trackwright/internal/lock"
	"github.com/lattani/trackwright/internal/scheduler"
	"github.com/lattani/trackwright/shield"
)

// Config controls the worker's HTTP surface and shutdown behavior.
type Config struct {
	Port          int
	ShutdownGrace time.Duration
}

func (c *Config) defaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
}

// Worker owns the HTTP control surface and drives the leader-elected
// scheduler for the lifetime of the process.
type Worker struct {
	pool     *sql.DB
	sched    *scheduler.Scheduler
	cfg      Config
	logger   *slog.Logger
	server   *http.Server
	registry *prometheus.Registry
}

// New builds a Worker. pool must be the same database the scheduler and
// its Store were built against — it's used directly for the leader
// advisory lock, which needs a session-scoped connection outside the
// Store's Execer abstraction.
func New(pool *sql.DB, sched *scheduler.Scheduler, cfg Config, logger *slog.Logger) *Worker {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{pool: pool, sched: sched, cfg: cfg, logger: logger}
	w.registry = w.newRegistry()
	w.server = &http.Server{Handler: w.router()}
	return w
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// listen binds the worker's HTTP port, retrying once on port+1 if the
// configured port is already in use.
func (w *Worker) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", portAddr(w.cfg.Port))
	if err != nil && isAddrInUse(err) {
		fallback := w.cfg.Port + 1
		w.logger.Warn("worker: port in use, retrying once", "port", w.cfg.Port, "fallback_port", fallback)
		ln, err = net.Listen("tcp", portAddr(fallback))
	}
	if err != nil {
		return nil, fmt.Errorf("worker: listen: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server, attempts to acquire the leader lock once
// (non-blocking), and — only if acquired — runs the scheduler loops for as
// long as ctx stays live. A replica that loses the race logs and returns
// promptly, mirroring the spec's "acquire or exit cleanly" contract; the
// caller (cmd/worker) is expected to exit the process in that case so an
// orchestrator can retry it against the next leader election.
func (w *Worker) Run(ctx context.Context) error {
	ln, err := w.listen()
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		w.logger.Info("worker: http listening", "addr", ln.Addr().String())
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- lock.WithLock(ctx, w.pool, lock.MainSchedulerNamespace, lock.MainSchedulerJobID, 0, func(ctx context.Context) error {
			w.sched.Status().SetLeaderHeld(true)
			defer w.sched.Status().SetLeaderHeld(false)
			w.sched.RunAll(ctx)
			return nil
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if errors.Is(err, lock.ErrNotAcquired) {
			w.logger.Info("worker: leader lock held elsewhere, exiting")
		} else if err != nil {
			w.logger.Error("worker: scheduler run failed", "error", err)
		}
	case err := <-serveErr:
		if err != nil {
			w.logger.Error("worker: http server failed", "error", err)
		}
	}

	return w.shutdown()
}

func (w *Worker) shutdown() error {
	w.sched.Status().SetShuttingDown(true)

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownGrace)
	defer cancel()

	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Warn("worker: http shutdown", "error", err)
	}
	return nil
}

func (w *Worker) router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultInternalStack() {
		r.Use(mw)
	}

	r.Get("/healthz", w.handleHealthz)
	r.Get("/readyz", w.handleReadyz)
	r.Get("/status", w.handleStatus)
	r.Get("/metrics", w.handleMetrics)
	r.Get("/metrics/prom", w.promHandler().ServeHTTP)

	return r
}

func (w *Worker) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	if w.sched.Status().ShuttingDown() {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	rw.WriteHeader(http.StatusOK)
}

func (w *Worker) handleReadyz(rw http.ResponseWriter, r *http.Request) {
	snap := w.sched.Status().Snapshot()
	ready := snap.LeaderHeld && !snap.ShuttingDown && snap.AnyStarted
	if !ready {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	rw.WriteHeader(http.StatusOK)
}

func (w *Worker) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, w.sched.Status().Snapshot())
}

// metricsResponse is the spec's compact JSON counters at GET /metrics —
// kept separate from /metrics/prom's Prometheus exposition format so the
// documented JSON contract never moves.
type metricsResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	LockHeld      int     `json:"lock_held"`
	SchedulersUp  int     `json:"schedulers_active"`
	ActiveJobs    int64   `json:"active_jobs"`
	ShuttingDown  int     `json:"shutting_down"`
}

func (w *Worker) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	snap := w.sched.Status().Snapshot()
	lockHeld, shuttingDown := 0, 0
	if snap.LeaderHeld {
		lockHeld = 1
	}
	if snap.ShuttingDown {
		shuttingDown = 1
	}
	running := 0
	for _, v := range snap.Running {
		if v {
			running++
		}
	}
	writeJSON(rw, metricsResponse{
		UptimeSeconds: snap.UptimeSeconds,
		LockHeld:      lockHeld,
		SchedulersUp:  running,
		ActiveJobs:    snap.ActiveJobs,
		ShuttingDown:  shuttingDown,
	})
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
