package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/shepherd/internal/service"
)

func sampleReport(runID string, ts time.Time) *service.GroupReport {
	r := &service.GroupReport{
		RunID:       runID,
		Timestamp:   ts,
		GracePeriod: 10 * time.Second,
		Cause:       service.CauseServiceExit,
		Results: map[string]*service.Result{
			"media":    {ID: "media", State: service.StateTerminated, Terminated: true, ExitCode: -1, Signal: "terminated"},
			"frontend": {ID: "frontend", State: service.StateFailed, ExitCode: 1, Error: "exited with code 1"},
		},
		TotalDuration: 1500 * time.Millisecond,
	}
	r.Tally()
	return r
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndList(t *testing.T) {
	store := openStore(t)

	base := time.Now()
	require.NoError(t, store.Record(sampleReport("run-1", base.Add(-time.Hour))))
	require.NoError(t, store.Record(sampleReport("run-2", base)))

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, "run-1", entries[1].RunID)
	assert.Equal(t, 1, entries[0].Failed)
	assert.Equal(t, 1, entries[0].Terminated)
	assert.Equal(t, service.CauseServiceExit, entries[0].Cause)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
}

func TestStore_ListLimit(t *testing.T) {
	store := openStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(sampleReport(
			fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := store.List(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestStore_Get(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Record(sampleReport("run-x", time.Now())))

	report, err := store.Get("run-x")
	require.NoError(t, err)
	assert.Equal(t, "run-x", report.RunID)
	assert.Equal(t, 1, report.Failed)
	require.Contains(t, report.Results, "frontend")
	assert.Equal(t, 1, report.Results["frontend"].ExitCode)

	// states must survive the round-trip, not collapse to pending
	assert.Equal(t, service.StateFailed, report.Results["frontend"].State)
	assert.Equal(t, service.StateTerminated, report.Results["media"].State)

	_, err = store.Get("absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_EmptyList(t *testing.T) {
	store := openStore(t)
	entries, err := store.List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
