package alerts

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/metrics"
)

// Kind identifies an alert rule.
type Kind string

const (
	KindLowBattery15 Kind = "low_battery_15"
	KindLowBattery10 Kind = "low_battery_10"
	KindLowBattery5  Kind = "low_battery_5"
	KindOverheat     Kind = "overheat"
	KindChargeLimit  Kind = "charge_limit"
)

// Event is an emitted alert. Immutable once created.
type Event struct {
	Kind      Kind
	Message   string
	Timestamp time.Time
}

// Thresholds are the configurable alert boundaries. LowBattery holds
// the three tiers in evaluation order, highest first.
type Thresholds struct {
	LowBattery  [3]int
	Overheat    float64 // Celsius
	ChargeLimit int     // percent
}

// Event history is capped; the oldest entries are dropped beyond this.
const maxEventLog = 1000

// Engine evaluates alert rules against samples and derived metrics.
// Each rule kind has an independent cooldown timer: a crossing within
// the cooldown window is suppressed silently, which is expected
// behavior and not an error. Suppression is purely time based; a
// recover-and-recross inside the window does not re-fire.
type Engine struct {
	mu         sync.Mutex
	thresholds Thresholds
	cooldown   time.Duration
	lastFired  map[Kind]time.Time
	log        []Event
}

func NewEngine(thresholds Thresholds, cooldown time.Duration) *Engine {
	return &Engine{
		thresholds: thresholds,
		cooldown:   cooldown,
		lastFired:  make(map[Kind]time.Time),
	}
}

// SetThresholds replaces the alert boundaries. Existing cooldown
// timers stay valid.
func (e *Engine) SetThresholds(t Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
}

// SetCooldown replaces the cooldown duration for subsequent
// evaluations.
func (e *Engine) SetCooldown(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
}

type rule struct {
	kind    Kind
	firing  bool
	message string
}

// Evaluate checks every rule in fixed order and returns the events
// that fired. Fired events are also appended to the engine's history.
func (e *Engine) Evaluate(now time.Time, sample battery.Sample, derived metrics.Derived) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for _, r := range e.rules(sample, derived) {
		if !r.firing {
			continue
		}

		last, fired := e.lastFired[r.kind]
		if fired && now.Sub(last) < e.cooldown {
			continue
		}

		event := Event{Kind: r.kind, Message: r.message, Timestamp: now}
		e.lastFired[r.kind] = now
		e.append(event)
		events = append(events, event)
	}

	return events
}

// rules builds the evaluation list in its fixed order. Adding a new
// alert kind means adding an entry here; the evaluation loop and the
// cooldown bookkeeping stay untouched.
func (e *Engine) rules(sample battery.Sample, derived metrics.Derived) []rule {
	lowBattery := func(threshold int) bool {
		return sample.Status == battery.StatusDischarging &&
			sample.Percentage <= float64(threshold)
	}

	return []rule{
		{
			kind:    KindLowBattery15,
			firing:  lowBattery(e.thresholds.LowBattery[0]),
			message: fmt.Sprintf("Low battery: %.0f%% remaining", sample.Percentage),
		},
		{
			kind:    KindLowBattery10,
			firing:  lowBattery(e.thresholds.LowBattery[1]),
			message: fmt.Sprintf("Low battery: %.0f%% remaining", sample.Percentage),
		},
		{
			kind:    KindLowBattery5,
			firing:  lowBattery(e.thresholds.LowBattery[2]),
			message: fmt.Sprintf("Critically low battery: %.0f%% remaining", sample.Percentage),
		},
		{
			kind:    KindOverheat,
			firing:  derived.Overheating,
			message: fmt.Sprintf("Overheating: battery temperature is %.1f°C", sample.Temperature),
		},
		{
			kind: KindChargeLimit,
			firing: sample.Status == battery.StatusCharging &&
				sample.Percentage >= float64(e.thresholds.ChargeLimit),
			message: fmt.Sprintf("Charge limit: battery reached %.0f%%, consider unplugging", sample.Percentage),
		},
	}
}

func (e *Engine) append(event Event) {
	e.log = append(e.log, event)
	if len(e.log) > maxEventLog {
		e.log = e.log[len(e.log)-maxEventLog:]
	}
}

// History returns a copy of the emitted alert log, oldest first.
func (e *Engine) History() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := make([]Event, len(e.log))
	copy(history, e.log)

	return history
}
