// Package config loads the bridgesim JSON configuration file and exposes
// typed views of its sections.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingProbability is returned when a condition grade has no
	// collapse probability.
	ErrMissingProbability = errors.New("missing collapse probability")

	// ErrInvalidProbability is returned when a collapse probability is
	// outside [0, 1].
	ErrInvalidProbability = errors.New("collapse probability outside [0, 1]")

	// ErrBadThresholds is returned when the bridge length thresholds are not
	// strictly increasing.
	ErrBadThresholds = errors.New("length thresholds must be strictly increasing")
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpDir      string        `json:"dumpDir" mapstructure:"dumpDir"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// SimulationConfig holds the run parameters
type SimulationConfig struct {
	Ticks                 int
	VehicleSpeed          float64 // meters per minute
	GenerationInterval    int
	Seed                  int64
	DeteriorationInterval int
}

// Thresholds classify bridges by length in meters
type Thresholds struct {
	Short  float64 `json:"short" mapstructure:"short"`
	Medium float64 `json:"medium" mapstructure:"medium"`
	Long   float64 `json:"long" mapstructure:"long"`
}

// BridgeConfig holds collapse probabilities per condition grade and the
// length thresholds for delay classification
type BridgeConfig struct {
	Probabilities map[string]float64
	Thresholds    Thresholds
}

// InfluxConfig holds the InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
}

// MonitorConfig holds the status monitor settings
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusPath string
}

// GraylogConfig holds the GELF log forwarding settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds the OpenTelemetry metrics settings
type OTelConfig struct {
	Enabled     bool
	ServiceName string
	Interval    time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("simulation.ticks", 7200)
	viper.SetDefault("simulation.vehicleSpeedKmh", 50)
	viper.SetDefault("simulation.generationInterval", 5)
	viper.SetDefault("simulation.seed", 1234567)
	viper.SetDefault("simulation.deteriorationInterval", 0)

	viper.SetDefault("scenario.file", "./data/scenario.csv")

	viper.SetDefault("bridges.collapseProbabilities.A", 0.0)
	viper.SetDefault("bridges.collapseProbabilities.B", 0.0)
	viper.SetDefault("bridges.collapseProbabilities.C", 0.0)
	viper.SetDefault("bridges.collapseProbabilities.D", 0.0)
	viper.SetDefault("bridges.thresholds.short", 10)
	viper.SetDefault("bridges.thresholds.medium", 50)
	viper.SetDefault("bridges.thresholds.long", 200)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpDir", "./runs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "bridgesim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "bridgesim-metrics")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusPath", "./status.txt")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "bridgesim")
	viper.SetDefault("otel.interval", "15s")

	viper.SetConfigName("bridgesim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpDir:      viper.GetString("storage.sqlite.dumpDir"),
		},
	}
}

// GetSimulationConfig returns the run parameters. The configured speed in
// km/h is converted to meters per minute.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Ticks:                 viper.GetInt("simulation.ticks"),
		VehicleSpeed:          viper.GetFloat64("simulation.vehicleSpeedKmh") * 1000 / 60,
		GenerationInterval:    viper.GetInt("simulation.generationInterval"),
		Seed:                  viper.GetInt64("simulation.seed"),
		DeteriorationInterval: viper.GetInt("simulation.deteriorationInterval"),
	}
}

// GetBridgeConfig returns the bridge collapse configuration.
func GetBridgeConfig() BridgeConfig {
	grades := []string{"A", "B", "C", "D"}
	probs := make(map[string]float64, len(grades))
	for _, g := range grades {
		probs[g] = viper.GetFloat64("bridges.collapseProbabilities." + g)
	}

	return BridgeConfig{
		Probabilities: probs,
		Thresholds: Thresholds{
			Short:  viper.GetFloat64("bridges.thresholds.short"),
			Medium: viper.GetFloat64("bridges.thresholds.medium"),
			Long:   viper.GetFloat64("bridges.thresholds.long"),
		},
	}
}

// Validate checks that all condition grades carry a probability inside
// [0, 1] and that the length thresholds are usable.
func (c BridgeConfig) Validate() error {
	for _, g := range []string{"A", "B", "C", "D"} {
		p, ok := c.Probabilities[g]
		if !ok {
			return fmt.Errorf("%w: grade %s", ErrMissingProbability, g)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: grade %s has %v", ErrInvalidProbability, g, p)
		}
	}

	t := c.Thresholds
	if !(t.Short < t.Medium && t.Medium < t.Long) {
		return fmt.Errorf("%w: short=%v medium=%v long=%v", ErrBadThresholds, t.Short, t.Medium, t.Long)
	}
	return nil
}

// GetInfluxConfig returns the InfluxDB metrics configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetMonitorConfig returns the status monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusPath: viper.GetString("monitor.statusPath"),
	}
}

// GetGraylogConfig returns the GELF log forwarding configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry metrics configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
		Interval:    viper.GetDuration("otel.interval"),
	}
}
