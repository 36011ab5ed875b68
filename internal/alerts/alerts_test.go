package alerts_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/battmon/internal/alerts"
	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cooldown = 5 * time.Minute

func defaultThresholds() alerts.Thresholds {
	return alerts.Thresholds{
		LowBattery:  [3]int{15, 10, 5},
		Overheat:    45,
		ChargeLimit: 80,
	}
}

func discharging(percentage float64) battery.Sample {
	return battery.Sample{
		Timestamp:  time.Now(),
		Percentage: percentage,
		Status:     battery.StatusDischarging,
	}
}

func charging(percentage float64) battery.Sample {
	s := discharging(percentage)
	s.Status = battery.StatusCharging
	return s
}

func kinds(events []alerts.Event) []alerts.Kind {
	out := make([]alerts.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	// Condition holds on every tick inside one cooldown window
	var fired []alerts.Event
	for tick := 0; tick < 10; tick++ {
		now := start.Add(time.Duration(tick) * 20 * time.Second)
		fired = append(fired, engine.Evaluate(now, discharging(14), metrics.Derived{})...)
	}

	require.Len(t, fired, 1, "exactly one event per cooldown window")
	assert.Equal(t, alerts.KindLowBattery15, fired[0].Kind)
}

func TestRefiresAfterCooldownExpires(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	first := engine.Evaluate(start, discharging(14), metrics.Derived{})
	require.Len(t, first, 1)

	second := engine.Evaluate(start.Add(cooldown), discharging(14), metrics.Derived{})
	require.Len(t, second, 1)
	assert.Equal(t, alerts.KindLowBattery15, second[0].Kind)
}

func TestTiersFireIndependentlyDuringCooldown(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	first := engine.Evaluate(start, discharging(14), metrics.Derived{})
	require.Equal(t, []alerts.Kind{alerts.KindLowBattery15}, kinds(first))

	// Still inside LowBattery15's cooldown: the lower tier has its own timer
	second := engine.Evaluate(start.Add(time.Minute), discharging(9), metrics.Derived{})
	require.Equal(t, []alerts.Kind{alerts.KindLowBattery10}, kinds(second))

	third := engine.Evaluate(start.Add(2*time.Minute), discharging(4), metrics.Derived{})
	require.Equal(t, []alerts.Kind{alerts.KindLowBattery5}, kinds(third))
}

func TestDescendingDischargeFiresAllTiers(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	var fired []alerts.Event
	for i, percentage := range []float64{16, 14, 9, 4} {
		now := start.Add(time.Duration(i) * (cooldown + time.Minute))
		fired = append(fired, engine.Evaluate(now, discharging(percentage), metrics.Derived{})...)
	}

	seen := make(map[alerts.Kind]bool)
	for _, e := range fired {
		seen[e.Kind] = true
	}
	assert.True(t, seen[alerts.KindLowBattery15])
	assert.True(t, seen[alerts.KindLowBattery10])
	assert.True(t, seen[alerts.KindLowBattery5])
	assert.False(t, seen[alerts.KindOverheat])
	assert.False(t, seen[alerts.KindChargeLimit])
}

func TestLowBatteryRequiresDischarging(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)

	fired := engine.Evaluate(time.Now(), charging(10), metrics.Derived{})
	assert.Empty(t, fired)
}

func TestOverheatFollowsDerivedFlag(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	now := time.Now()

	sample := discharging(50)
	sample.Temperature = 48
	sample.TemperatureKnown = true

	fired := engine.Evaluate(now, sample, metrics.Derived{Overheating: true})
	require.Equal(t, []alerts.Kind{alerts.KindOverheat}, kinds(fired))

	// The flag is computed upstream; a raw temperature alone fires nothing
	fired = engine.Evaluate(now.Add(cooldown), sample, metrics.Derived{})
	assert.Empty(t, fired)
}

func TestChargeLimit(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	fired := engine.Evaluate(start, charging(85), metrics.Derived{})
	require.Equal(t, []alerts.Kind{alerts.KindChargeLimit}, kinds(fired))

	// Suppressed inside the window, refires after it
	assert.Empty(t, engine.Evaluate(start.Add(time.Minute), charging(90), metrics.Derived{}))
	refired := engine.Evaluate(start.Add(cooldown+time.Minute), charging(92), metrics.Derived{})
	assert.Equal(t, []alerts.Kind{alerts.KindChargeLimit}, kinds(refired))

	// Never fires while discharging
	assert.Empty(t, engine.Evaluate(start.Add(2*cooldown), discharging(85), metrics.Derived{}))
}

func TestSetThresholdsKeepsCooldownTimers(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	fired := engine.Evaluate(start, discharging(14), metrics.Derived{})
	require.Len(t, fired, 1)

	thresholds := defaultThresholds()
	thresholds.LowBattery[0] = 20
	engine.SetThresholds(thresholds)

	// Raising the threshold does not reset the running cooldown
	assert.Empty(t, engine.Evaluate(start.Add(time.Minute), discharging(14), metrics.Derived{}))
}

func TestHistoryAccumulates(t *testing.T) {
	engine := alerts.NewEngine(defaultThresholds(), cooldown)
	start := time.Now()

	engine.Evaluate(start, discharging(14), metrics.Derived{})
	engine.Evaluate(start.Add(time.Minute), discharging(9), metrics.Derived{})

	history := engine.History()
	require.Len(t, history, 2)
	assert.Equal(t, alerts.KindLowBattery15, history[0].Kind)
	assert.Equal(t, alerts.KindLowBattery10, history[1].Kind)
	assert.NotEmpty(t, history[0].Message)
}
