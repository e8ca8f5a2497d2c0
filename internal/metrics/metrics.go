package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	actionsInjectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickloop_actions_injected_total",
			Help: "Total number of actions injected",
		},
		[]string{"kind"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickloop_runs_total",
			Help: "Total number of replay runs by source and final status",
		},
		[]string{"source", "status"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickloop_run_duration_seconds",
			Help:    "Replay run duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"source"},
	)

	fullCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clickloop_full_cycles_total",
			Help: "Total number of completed full replay cycles",
		},
	)

	listsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clickloop_lists_skipped_total",
			Help: "Lists skipped because their interval had not elapsed",
		},
	)

	cronFiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickloop_cron_fires_total",
			Help: "Cron job fire attempts by result",
		},
		[]string{"result"},
	)

	replayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickloop_replay_state",
			Help: "Replay scheduler state (0 stopped, 1 running, 2 paused)",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordActionInjected(kind string) {
	actionsInjectedTotal.WithLabelValues(kind).Inc()
}

func RecordRun(source, status string, duration time.Duration) {
	runsTotal.WithLabelValues(source, status).Inc()
	runDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordFullCycle() {
	fullCyclesTotal.Inc()
}

func RecordListSkipped() {
	listsSkippedTotal.Inc()
}

func RecordCronFire(result string) {
	cronFiresTotal.WithLabelValues(result).Inc()
}

func SetReplayState(state int) {
	replayState.Set(float64(state))
}
