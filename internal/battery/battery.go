package battery

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/battmon/internal/errors"
)

const powerSupplyRoot = "/sys/class/power_supply"

// Scale factors for raw sysfs values
const (
	microToUnit  = 1e-6  // voltage_now (µV), current_now (µA)
	tenthDegrees = 0.1   // power_supply temp files report tenths of °C
	milliDegrees = 0.001 // thermal zone and hwmon files report milli-°C
)

// Status is the normalized charging state reported by the kernel.
type Status string

const (
	StatusCharging    Status = "Charging"
	StatusDischarging Status = "Discharging"
	StatusFull        Status = "Full"
	StatusUnknown     Status = "Unknown"
)

// ParseStatus normalizes a raw sysfs status string.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "charging":
		return StatusCharging
	case "discharging":
		return StatusDischarging
	case "full":
		return StatusFull
	default:
		return StatusUnknown
	}
}

// Plugged reports whether the status implies external power.
func (s Status) Plugged() bool {
	return s == StatusCharging || s == StatusFull
}

// Sample is one immutable reading of battery state.
type Sample struct {
	Timestamp        time.Time
	Percentage       float64
	Status           Status
	Voltage          float64 // volts
	Current          float64 // amperes
	Temperature      float64 // Celsius, valid only when TemperatureKnown
	TemperatureKnown bool
}

// Candidate is one filesystem location to try for a sensor category,
// with the factor converting its raw integer value to SI-ish units.
type Candidate struct {
	Path  string
	Scale float64
}

// Paths holds the ordered candidate lists per sensor category.
// The first readable path in each list wins.
type Paths struct {
	Capacity    []Candidate
	Status      []Candidate
	Voltage     []Candidate
	Current     []Candidate
	Temperature []Candidate
}

// DefaultPaths builds the candidate lists for the known battery sysfs
// layouts. An explicit override directory, when given, is tried before
// the conventional BAT0/BAT1/BAT names.
func DefaultPaths(override string) Paths {
	dirs := make([]string, 0, 4)
	if override != "" {
		dirs = append(dirs, override)
	}
	for _, name := range []string{"BAT0", "BAT1", "BAT"} {
		dirs = append(dirs, filepath.Join(powerSupplyRoot, name))
	}

	var p Paths
	for _, dir := range dirs {
		p.Capacity = append(p.Capacity, Candidate{filepath.Join(dir, "capacity"), 1})
		p.Status = append(p.Status, Candidate{filepath.Join(dir, "status"), 1})
		p.Voltage = append(p.Voltage, Candidate{filepath.Join(dir, "voltage_now"), microToUnit})
		p.Current = append(p.Current, Candidate{filepath.Join(dir, "current_now"), microToUnit})
		p.Temperature = append(p.Temperature,
			Candidate{filepath.Join(dir, "temp"), tenthDegrees},
			Candidate{filepath.Join(dir, "temperature"), tenthDegrees})
	}
	p.Temperature = append(p.Temperature,
		Candidate{"/sys/class/thermal/thermal_zone0/temp", milliDegrees},
		Candidate{"/sys/class/thermal/thermal_zone1/temp", milliDegrees},
		Candidate{"/sys/class/hwmon/hwmon0/temp1_input", milliDegrees},
		Candidate{"/sys/class/hwmon/hwmon1/temp1_input", milliDegrees})

	return p
}

// DetectDir returns the first existing battery directory, for display
// and startup logging. The Reader itself always walks the full
// candidate lists so a battery appearing later is still picked up.
func DetectDir(override string) (string, bool) {
	dirs := make([]string, 0, 4)
	if override != "" {
		dirs = append(dirs, override)
	}
	for _, name := range []string{"BAT0", "BAT1", "BAT"} {
		dirs = append(dirs, filepath.Join(powerSupplyRoot, name))
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			return dir, true
		}
	}

	return "", false
}

// Reader reads battery samples from the candidate paths. It performs
// no retries; callers decide retry policy.
type Reader struct {
	paths Paths
}

func NewReader(paths Paths) *Reader {
	return &Reader{paths: paths}
}

// Read takes one sample. Percentage is mandatory: when every capacity
// candidate is unreadable the read fails with ErrSensorUnavailable.
// Status, voltage, current and temperature degrade individually
// (Unknown or zero) rather than failing the whole read.
func (r *Reader) Read() (Sample, error) {
	errFactory := errors.New()

	percentage, err := readScaled(r.paths.Capacity)
	if err != nil {
		return Sample{}, errFactory.Wrap(ErrSensorUnavailable, err)
	}
	percentage = clampPercent(percentage)

	sample := Sample{
		Timestamp:  time.Now(),
		Percentage: percentage,
		Status:     StatusUnknown,
	}

	if raw, err := readString(r.paths.Status); err == nil {
		sample.Status = ParseStatus(raw)
	}

	if v, err := readScaled(r.paths.Voltage); err == nil {
		sample.Voltage = v
	}

	if a, err := readScaled(r.paths.Current); err == nil {
		sample.Current = a
	}

	if t, err := readScaled(r.paths.Temperature); err == nil {
		sample.Temperature = t
		sample.TemperatureKnown = true
	}

	return sample, nil
}

func readScaled(candidates []Candidate) (float64, error) {
	raw, scale, err := readFirst(candidates)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}

	return value * scale, nil
}

func readString(candidates []Candidate) (string, error) {
	raw, _, err := readFirst(candidates)

	return raw, err
}

func readFirst(candidates []Candidate) (string, float64, error) {
	errFactory := errors.New()

	var lastErr error
	for _, c := range candidates {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			lastErr = err
			continue
		}

		return strings.TrimSpace(string(data)), c.Scale, nil
	}

	if lastErr == nil {
		return "", 0, errFactory.New(ErrNoCandidatePaths)
	}

	return "", 0, lastErr
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}

	return value
}
