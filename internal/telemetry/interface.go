package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Snapshot is one recorded battery state with its derived metrics.
type Snapshot struct {
	Timestamp        time.Time
	Percentage       float64
	Status           string
	Voltage          float64
	Current          float64
	Temperature      float64
	TemperatureKnown bool
	PowerWatts       float64
	ConsumptionRate  float64
	Overheating      bool
}
