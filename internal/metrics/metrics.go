package metrics

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
)

// Bucket names, one per exported series.
const (
	// BucketRunData receives the per-tick aggregate.
	BucketRunData = "run_data"

	// BucketPerformance receives the writer-side health series sampled by
	// the monitor.
	BucketPerformance = "sim_performance"
)

// DefaultBucketNames are the InfluxDB buckets used by bridgesim.
var DefaultBucketNames = []string{
	BucketRunData,
	BucketPerformance,
}

var (
	// ErrDisabled is returned by Connect when influx export is switched off
	// in the configuration.
	ErrDisabled = errors.New("influx metrics are disabled")

	// ErrNotConnected is returned when neither a live client nor the backup
	// writer is available to take a point.
	ErrNotConnected = errors.New("influx client not connected")
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot be
// reached, points are diverted to a gzipped line-protocol backup file at
// BackupPath instead of being dropped.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())

	if err != nil || !running {
		m.IsValid = false
		// create backup writer
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		err = m.setupOrganizationAndBuckets()
		if err != nil {
			return err
		}
		m.CreateWriters()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// get influxOrg
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90, // 90 days
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)

		m.Logger.Trace().Str("bucket", bucket).Msg("InfluxDB writer created")
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		if _, ok := m.Writers[bucket]; !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		m.Writers[bucket].WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("%w and backup writer not available", ErrNotConnected)
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	_, err := m.BackupWriter.Write([]byte(lineProtocol + "\n"))
	if err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}

	return nil
}

// TickStats is the per-tick aggregate exported to the run_data bucket.
type TickStats struct {
	Tick             int
	ActiveVehicles   int
	WaitingVehicles  int
	Generated        int
	Removed          int
	CollapsedBridges int
	BridgesInRepair  int
	AverageTripTime  float64
}

// WriteTickStats writes one point per completed simulation tick, tagged with
// the run UID.
func (m *Manager) WriteTickStats(ctx context.Context, run string, stats TickStats) error {
	p := influxdb2_write.NewPointWithMeasurement("sim_tick").
		AddTag("run_uid", run).
		AddField("tick", stats.Tick).
		AddField("active_vehicles", stats.ActiveVehicles).
		AddField("waiting_vehicles", stats.WaitingVehicles).
		AddField("generated", stats.Generated).
		AddField("removed", stats.Removed).
		AddField("collapsed_bridges", stats.CollapsedBridges).
		AddField("bridges_in_repair", stats.BridgesInRepair).
		AddField("average_trip_time_min", stats.AverageTripTime).
		SetTime(time.Now())

	return m.WritePoint(ctx, BucketRunData, p)
}

// WritePerformance writes the queue-length and write-health points the
// monitor samples every status interval.
func (m *Manager) WritePerformance(ctx context.Context, run string, perf *model.RunPerformance) error {
	queues := influxdb2_write.NewPointWithMeasurement("sim_queue_lengths").
		AddTag("run_uid", run).
		AddField("segments", int(perf.QueueLengths.Segments)).
		AddField("vehicles", int(perf.QueueLengths.Vehicles)).
		AddField("trips", int(perf.QueueLengths.Trips)).
		AddField("trajectory_states", int(perf.QueueLengths.TrajectoryStates)).
		AddField("bridge_states", int(perf.QueueLengths.BridgeStates)).
		AddField("sim_events", int(perf.QueueLengths.SimEvents)).
		SetTime(perf.Time)

	if err := m.WritePoint(ctx, BucketPerformance, queues); err != nil {
		return err
	}

	health := influxdb2_write.NewPointWithMeasurement("sim_write_health").
		AddTag("run_uid", run).
		AddField("last_write_duration_ms", float64(perf.LastWriteDurationMs)).
		AddField("tick_rate", float64(perf.TickRate)).
		SetTime(perf.Time)

	return m.WritePoint(ctx, BucketPerformance, health)
}

// Close flushes pending writes and releases the client or the backup file.
func (m *Manager) Close() error {
	if m.IsValid {
		for _, w := range m.Writers {
			w.Flush()
		}
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			return fmt.Errorf("error closing InfluxDB backup file: %s", err)
		}
	}
	return nil
}
