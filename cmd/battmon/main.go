package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/battmon/internal/battery"
	"codeberg.org/mutker/battmon/internal/config"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/monitor"
	"codeberg.org/mutker/battmon/internal/pid"
	"codeberg.org/mutker/battmon/internal/sysinfo"
	"codeberg.org/mutker/battmon/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer pid.Remove()

	info := sysinfo.Collect(cfg.BatteryPath)
	logSystemInfo(info)

	collector, err := telemetry.NewService(telemetry.Config{
		DBPath:  cfg.Database,
		Enabled: cfg.Telemetry,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer collector.Close()

	reader := battery.NewReader(battery.DefaultPaths(cfg.BatteryPath))
	mon := monitor.New(cfg, reader, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	done := make(chan error, 1)
	go func() {
		done <- mon.Run(ctx)
	}()

	for {
		select {
		case snapshot := <-mon.Snapshots():
			logSnapshot(snapshot)
		case err := <-done:
			if err != nil {
				logger.Error().Err(err).Msg("error in sampling loop")
			}
			stats := mon.HistoryStats()
			logger.Info().
				Int("data_points", stats.Points).
				Float64("avg_consumption_w", stats.AvgConsumptionWatts).
				Float64("peak_consumption_w", stats.PeakConsumptionWatts).
				Msg("Exiting...")
			return
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logSystemInfo(info sysinfo.Info) {
	if !info.BatteryFound {
		logger.Warn().Msg("No battery directory detected, waiting for sensors")
	} else {
		logger.Info().Msgf("Detected battery: %s", info.BatteryPath)
	}
	logger.Info().
		Str("distro", info.Distro).
		Str("kernel", info.KernelVersion).
		Msg("System information")
}

func logSnapshot(s monitor.Snapshot) {
	for _, event := range s.Events {
		logger.Warn().
			Str("alert", string(event.Kind)).
			Time("at", event.Timestamp).
			Msg(event.Message)
	}

	if s.Warning != "" {
		logger.Warn().Msg(s.Warning)
	}

	if s.Stale {
		logger.Info().
			Float64("percentage", s.Sample.Percentage).
			Str("status", string(s.Sample.Status)).
			Bool("stale", true).
			Msg("")
		return
	}

	if cfg.Debug {
		event := logger.Debug().
			Float64("percentage", s.Sample.Percentage).
			Str("status", string(s.Sample.Status)).
			Float64("voltage_v", s.Sample.Voltage).
			Float64("current_a", s.Sample.Current).
			Float64("power_w", s.Metrics.PowerWatts).
			Float64("consumption_w", s.Metrics.ConsumptionRateWatts).
			Bool("overheating", s.Metrics.Overheating)
		if s.Sample.TemperatureKnown {
			event = event.Float64("temperature_c", s.Sample.Temperature)
		}
		if s.Metrics.TimeToEmpty > 0 {
			event = event.Str("time_to_empty", formatDuration(s.Metrics.TimeToEmpty))
		}
		if s.Metrics.TimeToFull > 0 {
			event = event.Str("time_to_full", formatDuration(s.Metrics.TimeToFull))
		}
		event.Msg("")
	} else if cfg.Verbose {
		logger.Info().
			Float64("percentage", s.Sample.Percentage).
			Str("status", string(s.Sample.Status)).
			Float64("power_w", s.Metrics.PowerWatts).
			Msg("")
	}
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
