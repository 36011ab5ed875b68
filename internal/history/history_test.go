package history_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/history"
	"codeberg.org/mutker/battmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(ts time.Time, percentage float64) history.Entry {
	return history.Entry{
		Sample: battery.Sample{
			Timestamp:  ts,
			Percentage: percentage,
			Status:     battery.StatusDischarging,
			Voltage:    12.1,
			Current:    1.25,
		},
		Metrics: metrics.Derived{PowerWatts: -15.125},
	}
}

func TestAppendPrunesOutsideRetention(t *testing.T) {
	store := history.NewStore("")
	start := time.Now().Add(-48 * time.Hour)

	// Strictly increasing timestamps spanning two days
	for i := 0; i < 48; i++ {
		store.Append(entryAt(start.Add(time.Duration(i)*time.Hour), 50))
	}

	window := store.Snapshot()
	require.NotEmpty(t, window)

	latest := window[len(window)-1].Sample.Timestamp
	cutoff := latest.Add(-24 * time.Hour)
	for i, entry := range window {
		assert.False(t, entry.Sample.Timestamp.Before(cutoff),
			"entry %d older than 24h survived the prune", i)
		if i > 0 {
			assert.True(t, entry.Sample.Timestamp.After(window[i-1].Sample.Timestamp),
				"window must stay in timestamp order")
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := history.NewStore("")
	store.Append(entryAt(time.Now(), 50))

	snapshot := store.Snapshot()
	snapshot[0].Sample.Percentage = 0

	assert.InDelta(t, 50.0, store.Snapshot()[0].Sample.Percentage, 0.001)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery_history.json")
	store := history.NewStore(path)

	now := time.Now().Truncate(time.Millisecond)
	withTemp := entryAt(now, 42.5)
	withTemp.Sample.Temperature = 36.6
	withTemp.Sample.TemperatureKnown = true
	store.Append(withTemp)
	store.Append(entryAt(now.Add(2*time.Second), 42.4))

	require.NoError(t, store.Persist())

	reloaded := history.NewStore(path)
	loaded, err := reloaded.Load()
	require.NoError(t, err)
	require.Equal(t, 2, loaded)

	original := store.Snapshot()
	restored := reloaded.Snapshot()
	require.Len(t, restored, 2)

	for i := range original {
		assert.True(t, original[i].Sample.Timestamp.Equal(restored[i].Sample.Timestamp))
		assert.InDelta(t, original[i].Sample.Percentage, restored[i].Sample.Percentage, 1e-9)
		assert.Equal(t, original[i].Sample.Status, restored[i].Sample.Status)
		assert.InDelta(t, original[i].Sample.Voltage, restored[i].Sample.Voltage, 1e-9)
		assert.InDelta(t, original[i].Sample.Current, restored[i].Sample.Current, 1e-9)
		assert.InDelta(t, original[i].Metrics.PowerWatts, restored[i].Metrics.PowerWatts, 1e-9)
	}
	assert.True(t, restored[0].Sample.TemperatureKnown)
	assert.InDelta(t, 36.6, restored[0].Sample.Temperature, 1e-9)
	assert.False(t, restored[1].Sample.TemperatureKnown, "null temperature stays unknown")
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "battery_history.json")
	store := history.NewStore(path)
	store.Append(entryAt(time.Now(), 50))

	require.NoError(t, store.Persist())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "battery_history.json", entries[0].Name())
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery_history.json")
	content := `[
  {"timestamp": "2026-08-30T10:00:00Z", "percentage": 50, "status": "Discharging", "voltage": 12.1, "current": 1.2, "temperature": null, "power_watts": -14.5},
  {"timestamp": "not-a-timestamp", "percentage": 49, "status": "Discharging", "voltage": 12.1, "current": 1.2, "temperature": null, "power_watts": -14.5},
  {"timestamp": "2026-08-30T10:00:04Z", "percentage": 150, "status": "Discharging", "voltage": 12.1, "current": 1.2, "temperature": null, "power_watts": -14.5},
  {"timestamp": "2026-08-30T10:00:06Z", "percentage": 48, "status": "Discharging", "voltage": 12.1, "current": 1.2, "temperature": 35.0, "power_watts": -14.2}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := history.NewStore(path)
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded, "invalid entries are skipped, not fatal")

	window := store.Snapshot()
	require.Len(t, window, 2)
	assert.InDelta(t, 50.0, window[0].Sample.Percentage, 0.001)
	assert.InDelta(t, 48.0, window[1].Sample.Percentage, 0.001)
	assert.True(t, window[1].Sample.TemperatureKnown)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := history.NewStore(filepath.Join(t.TempDir(), "missing.json"))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, loaded)
	assert.Empty(t, store.Snapshot())
}

func TestStats(t *testing.T) {
	store := history.NewStore("")
	now := time.Now()

	rates := []float64{4, 8, 6}
	for i, rate := range rates {
		entry := entryAt(now.Add(time.Duration(i)*time.Second), 50)
		entry.Metrics.ConsumptionRateWatts = rate
		entry.Metrics.RateKnown = true
		store.Append(entry)
	}

	stats := store.Stats()
	assert.Equal(t, 3, stats.Points)
	assert.InDelta(t, 6.0, stats.AvgConsumptionWatts, 0.001)
	assert.InDelta(t, 8.0, stats.PeakConsumptionWatts, 0.001)
}

func TestStatsEmpty(t *testing.T) {
	store := history.NewStore("")
	stats := store.Stats()
	assert.Zero(t, stats.Points)
	assert.Zero(t, stats.AvgConsumptionWatts)
}
