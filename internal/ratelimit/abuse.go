package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity grades how far past its limit a counter has gone.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classify grades the usage-to-limit ratio. Anything at or under the limit
// is none; past the limit the ratio thresholds 1.2, 1.5 and 2.0 escalate
// through medium, high and critical.
func Classify(count int, limit Limit) Severity {
	if limit.MaxRequests <= 0 || count <= limit.MaxRequests {
		return SeverityNone
	}
	ratio := float64(count) / float64(limit.MaxRequests)
	switch {
	case ratio >= 2.0:
		return SeverityCritical
	case ratio >= 1.5:
		return SeverityHigh
	case ratio >= 1.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SuspiciousActivityRecord is one audit entry for an over-limit observation.
type SuspiciousActivityRecord struct {
	ID          string    `json:"id"`
	KeyIdentity string    `json:"key_identity"`
	Class       string    `json:"activity_class"`
	Count       int       `json:"observed_count"`
	Limit       int       `json:"limit"`
	Severity    Severity  `json:"severity"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Detector classifies over-limit traffic and escalates. On critical it
// inserts the offending network identity into the denylist and records a
// SuspiciousActivityRecord. Escalation is monotonic: nothing here ever
// removes a denylist entry.
type Detector struct {
	lists     *IPLists
	logger    *slog.Logger
	retention time.Duration
	clock     func() time.Time

	mu      sync.Mutex
	records []SuspiciousActivityRecord
}

// NewDetector constructs a Detector. retention bounds how long suspicious
// records are kept for inspection; clock may be nil.
func NewDetector(lists *IPLists, retention time.Duration, logger *slog.Logger, clock func() time.Time) *Detector {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &Detector{lists: lists, logger: logger, retention: retention, clock: clock}
}

// Observe classifies the entry and applies escalation. ip is the network
// identity to denylist on critical severity.
func (d *Detector) Observe(entry Entry, limit Limit, ip string) Severity {
	severity := Classify(entry.Count, limit)
	if severity == SeverityNone || severity == SeverityLow {
		return severity
	}

	record := SuspiciousActivityRecord{
		ID:          uuid.NewString(),
		KeyIdentity: entry.Key.Identity,
		Class:       entry.Key.Class,
		Count:       entry.Count,
		Limit:       limit.MaxRequests,
		Severity:    severity,
		DetectedAt:  d.clock(),
	}

	d.mu.Lock()
	d.pruneLocked(record.DetectedAt)
	d.records = append(d.records, record)
	d.mu.Unlock()

	if severity == SeverityCritical && ip != "" {
		d.lists.AddDeny(ip)
		if d.logger != nil {
			d.logger.Warn("critical abuse, network identity denylisted",
				slog.String("ip", ip),
				slog.String("identity", entry.Key.Identity),
				slog.String("class", entry.Key.Class),
				slog.Int("count", entry.Count),
				slog.Int("limit", limit.MaxRequests))
		}
	}
	return severity
}

// Activities returns recent records, optionally filtered by severity.
func (d *Detector) Activities(severity Severity) []SuspiciousActivityRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(d.clock())
	out := make([]SuspiciousActivityRecord, 0, len(d.records))
	for _, r := range d.records {
		if severity != "" && r.Severity != severity {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Prune drops records older than the retention horizon.
func (d *Detector) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := len(d.records)
	d.pruneLocked(d.clock())
	return before - len(d.records)
}

func (d *Detector) pruneLocked(now time.Time) {
	cutoff := now.Add(-d.retention)
	kept := d.records[:0]
	for _, r := range d.records {
		if r.DetectedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	d.records = kept
}
