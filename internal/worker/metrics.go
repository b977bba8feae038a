package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRegistry wires a handful of GaugeFuncs reading live off the
// scheduler's Status snapshot, rather than pushing updates into counters
// from inside the loops themselves — there's already a single source of
// truth (Status) and the Prometheus client library is built for pull.
func (w *Worker) newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackwright_worker_uptime_seconds",
		Help: "Seconds since this worker process started.",
	}, func() float64 {
		return w.sched.Status().Snapshot().UptimeSeconds
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackwright_worker_leader",
		Help: "1 if this worker currently holds the scheduler leader lock.",
	}, func() float64 {
		if w.sched.Status().Snapshot().LeaderHeld {
			return 1
		}
		return 0
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackwright_worker_shutting_down",
		Help: "1 if this worker is draining for shutdown.",
	}, func() float64 {
		if w.sched.Status().Snapshot().ShuttingDown {
			return 1
		}
		return 0
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackwright_worker_active_jobs",
		Help: "Number of check jobs currently in flight.",
	}, func() float64 {
		return float64(w.sched.Status().Snapshot().ActiveJobs)
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackwright_worker_loops_running",
		Help: "Number of scheduler loops currently running, by loop name.",
	}, func() float64 {
		running := 0
		for _, v := range w.sched.Status().Snapshot().Running {
			if v {
				running++
			}
		}
		return float64(running)
	}))

	return reg
}

func (w *Worker) promHandler() http.Handler {
	return promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{})
}
