package metrics

import (
	"math"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
)

const (
	hoursPerSecond = 1.0 / 3600.0

	// Estimates beyond this horizon are noise, not information
	maxEstimate = 100 * time.Hour
)

// Derived holds the metrics computed from one sample relative to the
// previous one. PowerWatts is signed: negative while discharging.
type Derived struct {
	PowerWatts           float64
	ConsumptionRateWatts float64
	RateKnown            bool
	Overheating          bool
	TimeToFull           time.Duration // zero when not estimable
	TimeToEmpty          time.Duration // zero when not estimable
}

// Calculator derives metrics from consecutive samples. It keeps the
// last computed consumption rate so that a zero or negative elapsed
// interval returns the prior rate unchanged.
type Calculator struct {
	overheatThreshold float64
	capacityWh        float64
	lastRate          float64
	rateKnown         bool
}

func NewCalculator(overheatThreshold, capacityWh float64) *Calculator {
	return &Calculator{
		overheatThreshold: overheatThreshold,
		capacityWh:        capacityWh,
	}
}

// SetOverheatThreshold updates the overheat boundary. Takes effect on
// the next Derive call.
func (c *Calculator) SetOverheatThreshold(threshold float64) {
	c.overheatThreshold = threshold
}

// Derive computes metrics for cur relative to prev. A nil prev marks
// the first tick, which yields no consumption rate.
func (c *Calculator) Derive(prev *battery.Sample, cur battery.Sample) Derived {
	d := Derived{
		PowerWatts: signedPower(cur),
	}

	if prev != nil {
		elapsed := cur.Timestamp.Sub(prev.Timestamp)
		if elapsed > 0 {
			c.lastRate = c.consumptionRate(prev.Percentage, cur.Percentage, elapsed)
			c.rateKnown = true
		}
	}
	d.ConsumptionRateWatts = c.lastRate
	d.RateKnown = c.rateKnown

	if cur.TemperatureKnown && cur.Temperature > c.overheatThreshold {
		d.Overheating = true
	}

	d.TimeToFull = c.timeRemaining(cur, d, true)
	d.TimeToEmpty = c.timeRemaining(cur, d, false)

	return d
}

func signedPower(s battery.Sample) float64 {
	power := math.Abs(s.Voltage * s.Current)
	if s.Status == battery.StatusDischarging {
		return -power
	}

	return power
}

// consumptionRate averages the energy drawn from the pack over the
// elapsed interval, in Watts. Percentage deltas are converted through
// the configured typical pack capacity.
func (c *Calculator) consumptionRate(prevPercent, curPercent float64, elapsed time.Duration) float64 {
	percentPerHour := (prevPercent - curPercent) / (elapsed.Seconds() * hoursPerSecond)
	wattHoursPerHour := (percentPerHour / 100.0) * c.capacityWh

	return math.Abs(wattHoursPerHour)
}

func (c *Calculator) timeRemaining(s battery.Sample, d Derived, toFull bool) time.Duration {
	power := d.ConsumptionRateWatts
	if !d.RateKnown || power <= 0 {
		power = math.Abs(d.PowerWatts)
	}
	if power <= 0 {
		return 0
	}

	var percentNeeded float64
	if toFull {
		if !s.Status.Plugged() {
			return 0
		}
		percentNeeded = 100.0 - s.Percentage
	} else {
		if s.Status != battery.StatusDischarging {
			return 0
		}
		percentNeeded = s.Percentage
	}
	if percentNeeded <= 0 {
		return 0
	}

	hours := (percentNeeded / 100.0) * c.capacityWh / power
	estimate := time.Duration(hours * float64(time.Hour))
	if estimate > maxEstimate {
		return 0
	}

	return estimate
}
