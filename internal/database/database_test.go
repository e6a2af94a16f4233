package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
)

func newFileManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	m.DB = db
	m.ShouldSaveLocal = true
	require.NoError(t, m.Setup())
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return m
}

func TestManager_SetupAndRoundTrip(t *testing.T) {
	m := newFileManager(t)

	run := model.Run{
		UID:       uuid.New().String(),
		StartTime: time.Now().UTC(),
		Seed:      1234567,
		Ticks:     7200,
	}
	require.NoError(t, m.DB.Create(&run).Error)
	require.NotZero(t, run.ID)

	vehicle := model.VehicleRecord{
		Time:          time.Now().UTC(),
		RunID:         run.ID,
		Name:          "Truck0",
		OriginID:      1000000,
		GeneratedTick: 0,
	}
	require.NoError(t, m.DB.Create(&vehicle).Error)

	trip := model.Trip{
		Time:          time.Now().UTC(),
		RunID:         run.ID,
		VehicleName:   "Truck0",
		DestinationID: 1000006,
		GeneratedTick: 0,
		RemovedTick:   7,
		TravelTimeMin: 7,
	}
	require.NoError(t, m.DB.Create(&trip).Error)

	var got model.Trip
	require.NoError(t, m.DB.First(&got, "vehicle_name = ?", "Truck0").Error)
	assert.Equal(t, run.ID, got.RunID)
	assert.Equal(t, 7, got.TravelTimeMin)
}

func TestManager_GeometryRoundTrip(t *testing.T) {
	m := newFileManager(t)

	run := model.Run{UID: uuid.New().String(), StartTime: time.Now().UTC()}
	require.NoError(t, m.DB.Create(&run).Error)

	location := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: 10064105.6, Y: 2719460.3}})
	seg := model.SegmentRecord{
		RunID:     run.ID,
		SegmentID: 1000002,
		Road:      "N1",
		Type:      "bridge",
		Name:      "Kanchpur Bridge",
		Condition: "B",
		LengthM:   397,
		Location:  location,
	}
	require.NoError(t, m.DB.Create(&seg).Error)

	var got model.SegmentRecord
	require.NoError(t, m.DB.First(&got, "segment_id = ?", 1000002).Error)

	coords, ok := got.Location.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 10064105.6, coords.X, 0.001)
	assert.InDelta(t, 2719460.3, coords.Y, 0.001)
}

func TestManager_DumpMemoryToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db
	m.ShouldSaveLocal = true
	require.NoError(t, m.Setup())

	dir := t.TempDir()
	m.SqliteFilePath = filepath.Join(dir, "dump.db")
	require.NoError(t, m.DumpMemoryToDisk())

	info, err := os.Stat(m.SqliteFilePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	paths, err := ListDumpFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{m.SqliteFilePath}, paths)
}

func TestManager_DumpWithoutPathFails(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.Error(t, m.DumpMemoryToDisk())
}

func TestListDumpFiles_FiltersOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644))

	paths, err := ListDumpFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db")}, paths)
}
