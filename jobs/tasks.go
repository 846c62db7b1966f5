// Package jobs runs the gate's background maintenance through Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/gate"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAbusePrune drops suspicious-activity records past retention.
	TaskAbusePrune = "abuse:prune"
	// TaskUsageReport logs an aggregate usage snapshot.
	TaskUsageReport = "gate:usage_report"
)

// AbusePrunePayload parameterises the prune task.
type AbusePrunePayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewAbusePruneTask constructs the prune task.
func NewAbusePruneTask(requestedBy string) (*asynq.Task, error) {
	data, err := json.Marshal(AbusePrunePayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAbusePrune, data), nil
}

// UsageReportPayload parameterises the usage report task.
type UsageReportPayload struct {
	IncludeClasses bool `json:"include_classes"`
}

// NewUsageReportTask constructs the usage report task.
func NewUsageReportTask(includeClasses bool) (*asynq.Task, error) {
	data, err := json.Marshal(UsageReportPayload{IncludeClasses: includeClasses})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsageReport, data), nil
}

// Maintenance owns the gate state the maintenance tasks operate on.
type Maintenance struct {
	detector *ratelimit.Detector
	store    *ratelimit.Store
	gate     *gate.Gate
	logger   *slog.Logger
	metrics  *TaskMetrics
}

// NewMaintenance constructs the maintenance task handlers. metrics may be nil.
func NewMaintenance(detector *ratelimit.Detector, store *ratelimit.Store, g *gate.Gate, logger *slog.Logger, metrics *TaskMetrics) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{detector: detector, store: store, gate: g, logger: logger, metrics: metrics}
}

// HandleAbusePrune processes TaskAbusePrune.
func (m *Maintenance) HandleAbusePrune(ctx context.Context, t *asynq.Task) error {
	var payload AbusePrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	track := m.metrics.Track(TaskAbusePrune)
	start := time.Now()
	dropped := m.detector.Prune()
	m.metrics.AddPruned(dropped)
	m.logger.Info("abuse records pruned",
		slog.Int("dropped", dropped),
		slog.Duration("took", time.Since(start)))
	return track.End(nil)
}

// HandleUsageReport processes TaskUsageReport.
func (m *Maintenance) HandleUsageReport(ctx context.Context, t *asynq.Task) error {
	var payload UsageReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	track := m.metrics.Track(TaskUsageReport)
	stats := m.store.Stats()
	attrs := []any{
		slog.Int("active_keys", stats.ActiveKeys),
		slog.Int("total_requests", stats.TotalRequests),
		slog.Int("total_blocked", stats.TotalBlocked),
	}
	if payload.IncludeClasses {
		for class, count := range stats.ByClass {
			attrs = append(attrs, slog.Int("class_"+class, count))
		}
	}
	if m.gate != nil {
		allow, deny := m.gate.Lists().Snapshot()
		attrs = append(attrs,
			slog.Int("allowlist_size", len(allow)),
			slog.Int("denylist_size", len(deny)))
	}
	m.logger.Info("gate usage report", attrs...)
	return track.End(nil)
}
