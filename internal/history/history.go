package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/metrics"
)

// Entries older than this relative to the newest sample are pruned.
const retention = 24 * time.Hour

const historyFilePerm = 0o644

// Entry pairs a sample with its derived metrics.
type Entry struct {
	Sample  battery.Sample
	Metrics metrics.Derived
}

// Stats summarizes the current window for the analytics view.
type Stats struct {
	AvgConsumptionWatts  float64
	PeakConsumptionWatts float64
	Points               int
}

// Store is the append-only rolling buffer of timestamped entries.
// Only the sampling loop appends; readers get copies.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	path    string
}

// NewStore creates a store. path names the optional JSON mirror; an
// empty path disables Persist and Load.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append adds an entry and prunes everything that has fallen out of
// the retention window.
func (s *Store) Append(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.prune()
}

func (s *Store) prune() {
	if len(s.entries) == 0 {
		return
	}

	cutoff := s.entries[len(s.entries)-1].Sample.Timestamp.Add(-retention)
	firstKept := 0
	for firstKept < len(s.entries) && s.entries[firstKept].Sample.Timestamp.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		s.entries = append([]Entry(nil), s.entries[firstKept:]...)
	}
}

// Snapshot returns a copy of the window in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)

	return snapshot
}

// Len returns the number of entries currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Stats computes average and peak consumption over the window.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Points: len(s.entries)}
	if stats.Points == 0 {
		return stats
	}

	var sum float64
	for _, entry := range s.entries {
		rate := entry.Metrics.ConsumptionRateWatts
		sum += rate
		if rate > stats.PeakConsumptionWatts {
			stats.PeakConsumptionWatts = rate
		}
	}
	stats.AvgConsumptionWatts = sum / float64(stats.Points)

	return stats
}

// record is the JSON wire format for one persisted entry.
type record struct {
	Timestamp   string   `json:"timestamp"`
	Percentage  float64  `json:"percentage"`
	Status      string   `json:"status"`
	Voltage     float64  `json:"voltage"`
	Current     float64  `json:"current"`
	Temperature *float64 `json:"temperature"`
	PowerWatts  float64  `json:"power_watts"`
}

func toRecord(entry Entry) record {
	r := record{
		Timestamp:  entry.Sample.Timestamp.Format(time.RFC3339Nano),
		Percentage: entry.Sample.Percentage,
		Status:     string(entry.Sample.Status),
		Voltage:    entry.Sample.Voltage,
		Current:    entry.Sample.Current,
		PowerWatts: entry.Metrics.PowerWatts,
	}
	if entry.Sample.TemperatureKnown {
		temperature := entry.Sample.Temperature
		r.Temperature = &temperature
	}

	return r
}

func fromRecord(r record) (Entry, bool) {
	timestamp, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Entry{}, false
	}
	if r.Percentage < 0 || r.Percentage > 100 {
		return Entry{}, false
	}

	entry := Entry{
		Sample: battery.Sample{
			Timestamp:  timestamp,
			Percentage: r.Percentage,
			Status:     battery.ParseStatus(r.Status),
			Voltage:    r.Voltage,
			Current:    r.Current,
		},
		Metrics: metrics.Derived{PowerWatts: r.PowerWatts},
	}
	if r.Temperature != nil {
		entry.Sample.Temperature = *r.Temperature
		entry.Sample.TemperatureKnown = true
	}

	return entry, true
}

// Persist serializes the current window to the JSON file, written to
// a temporary file first and renamed into place so a crash never
// leaves a truncated history behind.
func (s *Store) Persist() error {
	errFactory := errors.New()

	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	records := make([]record, len(s.entries))
	for i, entry := range s.entries {
		records[i] = toRecord(entry)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errFactory.Wrap(ErrPersistFailed, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, historyFilePerm); err != nil {
		return errFactory.Wrap(ErrPersistFailed, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errFactory.Wrap(ErrPersistFailed, err)
	}

	return nil
}

// Load replaces the window with the entries from the JSON file.
// Entries failing the schema are skipped, not fatal; a missing file
// is an empty history. Returns the number of entries loaded.
func (s *Store) Load() (int, error) {
	errFactory := errors.New()

	if s.path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errFactory.Wrap(ErrLoadFailed, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, errFactory.Wrap(ErrLoadFailed, err)
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if entry, ok := fromRecord(r); ok {
			entries = append(entries, entry)
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.prune()
	loaded := len(s.entries)
	s.mu.Unlock()

	return loaded, nil
}

// Path returns the configured history file location.
func (s *Store) Path() string {
	if s.path == "" {
		return ""
	}
	if abs, err := filepath.Abs(s.path); err == nil {
		return abs
	}

	return s.path
}
