package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/jobs"
)

func TestHandleAbusePrune(t *testing.T) {
	lists := ratelimit.NewIPLists()
	now := time.Now()
	clock := func() time.Time { return now }
	detector := ratelimit.NewDetector(lists, time.Hour, nil, clock)

	entry := ratelimit.Entry{
		Key:   ratelimit.Key{Role: ratelimit.Anonymous, Identity: "203.0.113.1", Class: "api"},
		Count: 13,
	}
	detector.Observe(entry, ratelimit.Limit{Window: time.Minute, MaxRequests: 10}, "203.0.113.1")
	require.Len(t, detector.Activities(""), 1)

	now = now.Add(2 * time.Hour)
	maintenance := jobs.NewMaintenance(detector, ratelimit.NewStore(nil), nil, nil, nil)

	task, err := jobs.NewAbusePruneTask("test")
	require.NoError(t, err)
	require.NoError(t, maintenance.HandleAbusePrune(context.Background(), task))
	require.Empty(t, detector.Activities(""))
}

func TestHandleUsageReport(t *testing.T) {
	store := ratelimit.NewStore(nil)
	store.Record(ratelimit.Key{Role: ratelimit.Anonymous, Identity: "203.0.113.1", Class: "api"}, time.Hour)
	maintenance := jobs.NewMaintenance(
		ratelimit.NewDetector(ratelimit.NewIPLists(), time.Hour, nil, nil),
		store, nil, nil, nil)

	task, err := jobs.NewUsageReportTask(true)
	require.NoError(t, err)
	require.NoError(t, maintenance.HandleUsageReport(context.Background(), task))
}
