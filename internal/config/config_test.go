package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"logsDir": "/custom/logs",
		"scenario": { "file": "/data/n1.csv" },
		"simulation": { "ticks": 100, "seed": 42 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "/custom/logs", viper.GetString("logsDir"))
	assert.Equal(t, "/data/n1.csv", viper.GetString("scenario.file"))
	assert.Equal(t, 100, viper.GetInt("simulation.ticks"))
	assert.Equal(t, int64(42), viper.GetInt64("simulation.seed"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, 7200, viper.GetInt("simulation.ticks"))
	assert.Equal(t, 50, viper.GetInt("simulation.vehicleSpeedKmh"))
	assert.Equal(t, 5, viper.GetInt("simulation.generationInterval"))
	assert.Equal(t, 0, viper.GetInt("simulation.deteriorationInterval"))
	assert.Equal(t, "./data/scenario.csv", viper.GetString("scenario.file"))
	assert.Equal(t, 0.0, viper.GetFloat64("bridges.collapseProbabilities.A"))
	assert.Equal(t, 0.0, viper.GetFloat64("bridges.collapseProbabilities.D"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "bridgesim", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./runs", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "8086", viper.GetString("influx.port"))
	assert.Equal(t, true, viper.GetBool("monitor.enabled"))
	assert.Equal(t, "./status.txt", viper.GetString("monitor.statusPath"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSimulationConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	cfg := GetSimulationConfig()
	assert.Equal(t, 7200, cfg.Ticks)
	assert.InDelta(t, 50*1000.0/60, cfg.VehicleSpeed, 0.001)
	assert.Equal(t, 5, cfg.GenerationInterval)
	assert.Equal(t, int64(1234567), cfg.Seed)
	assert.Equal(t, 0, cfg.DeteriorationInterval)
}

func TestGetSimulationConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"simulation": {
			"ticks": 1440,
			"vehicleSpeedKmh": 60,
			"generationInterval": 3,
			"seed": 99,
			"deteriorationInterval": 720
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	sc := GetSimulationConfig()
	assert.Equal(t, 1440, sc.Ticks)
	assert.InDelta(t, 1000.0, sc.VehicleSpeed, 0.001)
	assert.Equal(t, 3, sc.GenerationInterval)
	assert.Equal(t, int64(99), sc.Seed)
	assert.Equal(t, 720, sc.DeteriorationInterval)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./runs", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "./runs", cfg.SQLite.DumpDir)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpDir": "/tmp/dumps" }
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/dumps", sc.SQLite.DumpDir)
}

func TestGetBridgeConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"bridges": {
			"collapseProbabilities": { "A": 0, "B": 0.0005, "C": 0.001, "D": 0.005 }
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	bc := GetBridgeConfig()
	require.NoError(t, bc.Validate())
	assert.Equal(t, 0.0005, bc.Probabilities["B"])
	assert.Equal(t, 0.005, bc.Probabilities["D"])
	assert.Equal(t, 10.0, bc.Thresholds.Short)
	assert.Equal(t, 50.0, bc.Thresholds.Medium)
	assert.Equal(t, 200.0, bc.Thresholds.Long)
}

func TestBridgeConfig_Validate(t *testing.T) {
	valid := BridgeConfig{
		Probabilities: map[string]float64{"A": 0, "B": 0.01, "C": 0.05, "D": 0.1},
		Thresholds:    Thresholds{Short: 10, Medium: 50, Long: 200},
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("missing grade", func(t *testing.T) {
		cfg := valid
		cfg.Probabilities = map[string]float64{"A": 0, "B": 0.01, "C": 0.05}
		assert.ErrorIs(t, cfg.Validate(), ErrMissingProbability)
	})

	t.Run("probability above one", func(t *testing.T) {
		cfg := valid
		cfg.Probabilities = map[string]float64{"A": 0, "B": 0.01, "C": 0.05, "D": 1.5}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidProbability)
	})

	t.Run("negative probability", func(t *testing.T) {
		cfg := valid
		cfg.Probabilities = map[string]float64{"A": -0.1, "B": 0.01, "C": 0.05, "D": 0.1}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidProbability)
	})

	t.Run("thresholds not increasing", func(t *testing.T) {
		cfg := valid
		cfg.Thresholds = Thresholds{Short: 50, Medium: 50, Long: 200}
		assert.ErrorIs(t, cfg.Validate(), ErrBadThresholds)
	})
}

func TestGetInfluxConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"influx": { "enabled": true, "host": "influx.example.com", "token": "secret" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	ic := GetInfluxConfig()
	assert.Equal(t, true, ic.Enabled)
	assert.Equal(t, "influx.example.com", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "http", ic.Protocol)
	assert.Equal(t, "secret", ic.Token)
	assert.Equal(t, "bridgesim-metrics", ic.Org)
}

func TestGetMonitorConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"monitor": { "interval": "250ms", "statusPath": "/tmp/status.txt" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	mc := GetMonitorConfig()
	assert.Equal(t, true, mc.Enabled)
	assert.Equal(t, 250*time.Millisecond, mc.Interval)
	assert.Equal(t, "/tmp/status.txt", mc.StatusPath)
}

func TestGetGraylogConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"graylog": { "enabled": true, "address": "gl.example.com:12201" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	gc := GetGraylogConfig()
	assert.Equal(t, true, gc.Enabled)
	assert.Equal(t, "gl.example.com:12201", gc.Address)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, false, oc.Enabled)
	assert.Equal(t, "bridgesim", oc.ServiceName)
	assert.Equal(t, 15*time.Second, oc.Interval)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"otel": { "enabled": true, "serviceName": "bridgesim-batch", "interval": "1m" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridgesim.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "bridgesim-batch", oc.ServiceName)
	assert.Equal(t, time.Minute, oc.Interval)
}
