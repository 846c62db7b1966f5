package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics exposes Prometheus collectors for maintenance tasks.
type TaskMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pruned   prometheus.Counter
}

// NewTaskMetrics registers the task instruments against the provided
// registerer. When the registerer is nil the Prometheus default is used.
func NewTaskMetrics(registerer prometheus.Registerer) *TaskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_tasks_total",
		Help: "Maintenance task executions partitioned by task name and status.",
	}, []string{"task", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_task_failures_total",
		Help: "Total failures observed for maintenance tasks.",
	}, []string{"task"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gate_task_duration_seconds",
		Help:    "Duration in seconds of maintenance task executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_suspicious_records_pruned_total",
		Help: "Suspicious-activity records dropped after passing retention.",
	})
	registerer.MustRegister(runs, failures, duration, pruned)
	return &TaskMetrics{runs: runs, failures: failures, duration: duration, pruned: pruned}
}

// Tracker provides lifecycle instrumentation for a single task run.
type Tracker struct {
	metrics *TaskMetrics
	task    string
	start   time.Time
}

// Track spawns a tracker for the given task name.
func (m *TaskMetrics) Track(task string) *Tracker {
	if m == nil {
		return &Tracker{task: task, start: time.Now()}
	}
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End finalises the tracker, recording duration and success/failure counts,
// and returns the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.task).Inc()
	}
	t.metrics.runs.WithLabelValues(t.task, status).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// AddPruned increments the pruned-record counter.
func (m *TaskMetrics) AddPruned(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.pruned.Add(float64(count))
}
