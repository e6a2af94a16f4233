// Command bridgesim runs one truck-traffic simulation over a road network
// scenario and records the results through the configured storage backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/config"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/logging"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/metrics"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/monitor"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/otel"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/scenario"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/sim"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/storage"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/worker"
)

var (
	AppName    string = "bridgesim"
	AppVersion string = "1.0.0"
)

func main() {
	configDir := flag.String("config", ".", "directory containing bridgesim.cfg.json")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}

	graylog := config.GetGraylogConfig()
	opts := logging.Options{
		Level:   config.GetString("logLevel"),
		Dir:     config.GetString("logsDir"),
		AppName: AppName,
	}
	if graylog.Enabled {
		opts.GraylogAddr = graylog.Address
	}
	logger, closeLogs, err := logging.Setup(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}

	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		_ = closeLogs()
		os.Exit(1)
	}
	if err := closeLogs(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: closing log sinks: %v\n", AppName, err)
	}
}

func run(logger zerolog.Logger) error {
	logger.Info().Str("version", AppVersion).Msg("Starting up")

	simCfg := config.GetSimulationConfig()
	bridgeCfg := config.GetBridgeConfig()
	if err := bridgeCfg.Validate(); err != nil {
		return fmt.Errorf("bridge configuration: %w", err)
	}

	scenarioFile := config.GetString("scenario.file")
	sc, err := scenario.Load(scenarioFile)
	if err != nil {
		return err
	}
	logger.Info().
		Str("file", scenarioFile).
		Strs("roads", sc.RoadNames()).
		Int("segments", len(sc.Elements)).
		Float64("totalLengthM", sc.TotalLengthM()).
		Msg("Scenario loaded")

	backend, err := storage.NewBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing storage backend")
		}
	}()

	influx := metrics.NewManager(logger, filepath.Join(config.GetString("logsDir"), "influx_backup.log.gz"))
	if err := influx.Connect(); err != nil {
		if !errors.Is(err, metrics.ErrDisabled) {
			return fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
		logger.Info().Msg("InfluxDB export disabled")
		influx = nil
	}
	if influx != nil {
		defer func() {
			if err := influx.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing InfluxDB manager")
			}
		}()
	}

	// Install the meter provider before the bus creates its instruments.
	otelCfg := config.GetOTelConfig()
	var otelProvider *otel.Provider
	if otelCfg.Enabled {
		metricsPath := filepath.Join(config.GetString("logsDir"), "otel_metrics.json")
		metricsFile, err := os.OpenFile(metricsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Error().Err(err).Str("path", metricsPath).Msg("Failed to open OTel metrics file")
		} else {
			defer metricsFile.Close()
			otelProvider, err = otel.New(otel.Config{
				Enabled:      true,
				ServiceName:  otelCfg.ServiceName,
				Interval:     otelCfg.Interval,
				MetricWriter: metricsFile,
			})
			if err != nil {
				logger.Error().Err(err).Msg("Failed to initialize OTel provider")
			} else {
				logger.Info().Str("file", metricsPath).Msg("OTel metrics enabled")
			}
		}
	}
	if otelProvider != nil {
		defer func() {
			if err := otelProvider.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("OTel shutdown failed")
			}
		}()
	}

	bus, err := events.NewBus(logging.NewBusLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer bus.Close()

	recorder := worker.NewManager(worker.Dependencies{
		Scenario: sc,
		Logger:   logger,
	}, backend)
	recorder.RegisterHandlers(bus)

	probs := make(map[sim.Condition]float64, len(bridgeCfg.Probabilities))
	for grade, p := range bridgeCfg.Probabilities {
		cond, err := sim.ParseCondition(grade)
		if err != nil {
			return err
		}
		probs[cond] = p
	}
	probsJSON, err := json.Marshal(bridgeCfg.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode collapse probabilities: %w", err)
	}

	runRow := &model.Run{
		UID:                   uuid.New().String(),
		StartTime:             time.Now().UTC(),
		Seed:                  simCfg.Seed,
		Ticks:                 simCfg.Ticks,
		VehicleSpeed:          simCfg.VehicleSpeed,
		GenerationInterval:    simCfg.GenerationInterval,
		DeteriorationInterval: simCfg.DeteriorationInterval,
		CollapseProbabilities: datatypes.JSON(probsJSON),
		AppVersion:            AppVersion,
	}
	scenarioRow := &model.Scenario{
		FilePath:     sc.FilePath,
		Roads:        strings.Join(sc.RoadNames(), ","),
		SegmentCount: len(sc.Elements),
		TotalLengthM: sc.TotalLengthM(),
	}
	if err := backend.StartRun(runRow, scenarioRow); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	if err := recorder.RegisterSegments(); err != nil {
		return err
	}

	if influx != nil {
		subscribeTickStats(bus, influx, runRow.UID)
	}

	monCfg := config.GetMonitorConfig()
	var monitorService *monitor.Service
	if monCfg.Enabled {
		monitorService = monitor.NewService(monitor.Dependencies{
			Backend:    backend,
			Metrics:    influx,
			Logger:     logger,
			RunUID:     runRow.UID,
			StatusPath: monCfg.StatusPath,
			Interval:   monCfg.Interval,
		})
		monitorService.RegisterHandlers(bus)
		if !monitorService.IsRunning() {
			if err := monitorService.Start(); err != nil {
				return fmt.Errorf("failed to start status monitor: %w", err)
			}
		}
		defer monitorService.Stop()
	}

	s, err := scenario.Build(sc, scenario.BuildParams{
		Sim: sim.Params{
			VehicleSpeed:        simCfg.VehicleSpeed,
			DeteriorateInterval: simCfg.DeteriorationInterval,
		},
		GenerationInterval: simCfg.GenerationInterval,
		Probabilities:      probs,
		Bands: sim.DelayBands{
			Short:  bridgeCfg.Thresholds.Short,
			Medium: bridgeCfg.Thresholds.Medium,
			Long:   bridgeCfg.Thresholds.Long,
		},
		Seed: simCfg.Seed,
	}, sim.WithLogger(logger), sim.WithPublisher(bus))
	if err != nil {
		return fmt.Errorf("failed to build simulation: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("runUID", runRow.UID).
		Int("ticks", simCfg.Ticks).
		Int64("seed", simCfg.Seed).
		Str("storage", config.GetString("storage.type")).
		Msg("Run starting")

	started := time.Now()
	runErr := s.Run(ctx, simCfg.Ticks)
	completed := s.Tick()

	// Stop the monitor and drain the bus before the final flush so every
	// buffered record reaches the backend.
	if monitorService != nil {
		monitorService.Stop()
	}
	bus.Close()

	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("simulation aborted at tick %d: %w", completed, runErr)
		}
		logger.Warn().Int("tick", completed).Msg("Run interrupted, keeping partial results")
	}

	if err := backend.EndRun(uint(completed), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	stats := s.Stats()
	logger.Info().
		Int("ticks", completed).
		Int("generated", stats.Generated).
		Int("removed", stats.Removed).
		Int("onRoad", stats.Active).
		Int("collapsedBridges", stats.CollapsedBridges).
		Float64("averageTripTimeMin", stats.AverageTripTime).
		Dur("elapsed", time.Since(started)).
		Msg("Run complete")

	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			logger.Info().Str("file", path).Msg("Run exported")
		}
	}
	return nil
}

// subscribeTickStats forwards the per-tick aggregate to InfluxDB. Buffered so
// a slow flush never stalls the tick loop.
func subscribeTickStats(bus *events.Bus, influx *metrics.Manager, runUID string) {
	bus.Subscribe(events.NameTickCompleted, func(e events.Event) error {
		ev, ok := e.(events.TickCompleted)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", events.NameTickCompleted, e)
		}
		return influx.WriteTickStats(context.Background(), runUID, metrics.TickStats{
			Tick:             ev.Tick,
			ActiveVehicles:   ev.ActiveVehicles,
			WaitingVehicles:  ev.WaitingVehicles,
			Generated:        ev.Generated,
			Removed:          ev.Removed,
			CollapsedBridges: ev.CollapsedBridges,
			BridgesInRepair:  ev.BridgesInRepair,
			AverageTripTime:  ev.AverageTripTime,
		})
	}, events.Buffered(1000), events.Logged())
}
