package monitor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/alerts"
	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/config"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/history"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/metrics"
	"codeberg.org/mutker/battmon/internal/telemetry"
)

// The JSON mirror is flushed every this many appends, and once more
// on shutdown.
const persistEvery = 60

// SensorReader is the single blocking dependency of the loop.
type SensorReader interface {
	Read() (battery.Sample, error)
}

// Snapshot is what the loop publishes after each tick. When Stale is
// set the sample carries the last successfully read values and no
// history append or alert evaluation happened this tick.
type Snapshot struct {
	Sample  battery.Sample
	Metrics metrics.Derived
	Events  []alerts.Event
	Stale   bool
	Warning string
}

// Monitor drives the sampling cycle: read sensors, derive metrics,
// evaluate alerts, record history, publish. It owns all mutable
// sampling state; consumers only ever see copies.
type Monitor struct {
	reader    SensorReader
	calc      *metrics.Calculator
	engine    *alerts.Engine
	store     *history.Store
	collector telemetry.Collector

	mu          sync.Mutex
	interval    time.Duration
	saveJSON    bool
	lastSample  *battery.Sample
	appendCount int

	out chan Snapshot
}

func New(cfg *config.Config, reader SensorReader, collector telemetry.Collector) *Monitor {
	return &Monitor{
		reader:    reader,
		calc:      metrics.NewCalculator(cfg.OverheatThreshold, cfg.CapacityWh),
		engine:    alerts.NewEngine(thresholdsFromConfig(cfg), cfg.CooldownDuration()),
		store:     history.NewStore(cfg.HistoryFile),
		collector: collector,
		interval:  cfg.UpdateInterval(),
		saveJSON:  cfg.SaveJSON,
		out:       make(chan Snapshot, 1),
	}
}

func thresholdsFromConfig(cfg *config.Config) alerts.Thresholds {
	return alerts.Thresholds{
		LowBattery:  [3]int{cfg.LowBatteryThresholds[0], cfg.LowBatteryThresholds[1], cfg.LowBatteryThresholds[2]},
		Overheat:    cfg.OverheatThreshold,
		ChargeLimit: cfg.ChargeLimit,
	}
}

// Reconfigure applies a new configuration to a running monitor.
// An invalid configuration is rejected and the previous one remains
// active; cooldown timers already ticking are never reset.
func (m *Monitor) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.engine.SetThresholds(thresholdsFromConfig(cfg))
	m.engine.SetCooldown(cfg.CooldownDuration())
	m.calc.SetOverheatThreshold(cfg.OverheatThreshold)

	m.mu.Lock()
	m.interval = cfg.UpdateInterval()
	m.saveJSON = cfg.SaveJSON
	m.mu.Unlock()

	return nil
}

// Snapshots returns the subscription channel. It holds at most the
// newest snapshot: the loop never blocks on a slow consumer, and a
// consumer always renders the most recent tick.
func (m *Monitor) Snapshots() <-chan Snapshot {
	return m.out
}

// AlertHistory returns the emitted alert log.
func (m *Monitor) AlertHistory() []alerts.Event {
	return m.engine.History()
}

// HistoryWindow returns a copy of the rolling 24h window for charting.
func (m *Monitor) HistoryWindow() []history.Entry {
	return m.store.Snapshot()
}

// HistoryStats summarizes consumption over the rolling window.
func (m *Monitor) HistoryStats() history.Stats {
	return m.store.Stats()
}

// Run executes the sampling loop until ctx is cancelled. Cancellation
// halts future ticks only; an in-flight tick always completes, so no
// append or persist is ever cut short.
func (m *Monitor) Run(ctx context.Context) error {
	errFactory := errors.New()

	m.mu.Lock()
	interval := m.interval
	saveJSON := m.saveJSON
	m.mu.Unlock()

	if interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, interval)
	}

	if saveJSON {
		if loaded, err := m.store.Load(); err != nil {
			logger.Warn().Err(err).Msg("Failed to load history file, starting empty")
		} else if loaded > 0 {
			logger.Info().Int("entries", loaded).Msg("Loaded battery history")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.flush()
			return nil
		case <-ticker.C:
			m.tick(ctx)

			// Pick up a reconfigured interval without restarting
			m.mu.Lock()
			if m.interval != interval && m.interval > 0 {
				interval = m.interval
				ticker.Reset(interval)
			}
			m.mu.Unlock()
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	sample, err := m.reader.Read()
	if err != nil {
		m.publishStale(err)
		return
	}

	m.mu.Lock()
	prev := m.lastSample
	m.mu.Unlock()

	derived := m.calc.Derive(prev, sample)
	events := m.engine.Evaluate(sample.Timestamp, sample, derived)
	m.store.Append(history.Entry{Sample: sample, Metrics: derived})

	snapshot := Snapshot{
		Sample:  sample,
		Metrics: derived,
		Events:  events,
	}

	m.mu.Lock()
	sampleCopy := sample
	m.lastSample = &sampleCopy
	m.appendCount++
	shouldPersist := m.saveJSON && m.appendCount%persistEvery == 0
	m.mu.Unlock()

	if shouldPersist {
		if err := m.store.Persist(); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist history")
			snapshot.Warning = err.Error()
		}
	}

	m.record(ctx, sample, derived)
	m.publish(snapshot)
}

// Tick runs a single sampling cycle outside the ticker. Exposed for
// the presentation layer's manual refresh.
func (m *Monitor) Tick(ctx context.Context) {
	m.tick(ctx)
}

// publishStale hands out the last known values flagged stale. History
// and alert state are deliberately left untouched: a failed read must
// not pollute rate calculations or cooldown timers.
func (m *Monitor) publishStale(readErr error) {
	logger.Debug().Err(readErr).Msg("Sensor read failed, publishing stale snapshot")

	snapshot := Snapshot{Stale: true}
	m.mu.Lock()
	if m.lastSample != nil {
		snapshot.Sample = *m.lastSample
	} else {
		snapshot.Sample.Status = battery.StatusUnknown
	}
	m.mu.Unlock()

	m.publish(snapshot)
}

func (m *Monitor) record(ctx context.Context, sample battery.Sample, derived metrics.Derived) {
	snapshot := &telemetry.Snapshot{
		Timestamp:        sample.Timestamp,
		Percentage:       sample.Percentage,
		Status:           string(sample.Status),
		Voltage:          sample.Voltage,
		Current:          sample.Current,
		Temperature:      sample.Temperature,
		TemperatureKnown: sample.TemperatureKnown,
		PowerWatts:       derived.PowerWatts,
		ConsumptionRate:  derived.ConsumptionRateWatts,
		Overheating:      derived.Overheating,
	}
	if err := m.collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Failed to record telemetry")
	}
}

// publish replaces whatever snapshot is waiting in the slot. The
// producer never blocks on the consumer.
func (m *Monitor) publish(snapshot Snapshot) {
	for {
		select {
		case m.out <- snapshot:
			return
		default:
			select {
			case <-m.out:
			default:
			}
		}
	}
}

// flush writes the final history state on shutdown.
func (m *Monitor) flush() {
	m.mu.Lock()
	saveJSON := m.saveJSON
	m.mu.Unlock()

	if !saveJSON {
		return
	}
	if err := m.store.Persist(); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist history on shutdown")
	}
}
