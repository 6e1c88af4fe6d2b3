package telemetry_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/perfwatch/internal/sample"
	"codeberg.org/mutker/perfwatch/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func TestRecordStoresNullForUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	ts := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	s := sample.Sample{Timestamp: ts}
	s.System.CPUPercent = sample.Avail(0) // measured zero, must not collapse into NULL
	s.System.MemoryPercent = sample.Avail(61.5)
	// GPU and temperature stay unavailable, as on a headless VM.
	s.TopByCPU = []sample.ProcessRank{{Name: "encoder", User: "media", CPUPercent: 88.5}}

	require.NoError(t, collector.Record(context.Background(), s))
	require.NoError(t, collector.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var (
		timestamp int64
		cpu       sql.NullFloat64
		gpu       sql.NullFloat64
		temp      sql.NullFloat64
		topCPU    sql.NullString
		topIO     sql.NullString
	)
	row := db.QueryRow(`
        SELECT timestamp, cpu_percent, gpu_percent, temperature_c,
               top_cpu_process, top_io_process
        FROM samples`)
	require.NoError(t, row.Scan(&timestamp, &cpu, &gpu, &temp, &topCPU, &topIO))

	assert.Equal(t, ts.UnixNano(), timestamp)
	require.True(t, cpu.Valid)
	assert.Equal(t, 0.0, cpu.Float64)
	assert.False(t, gpu.Valid, "unavailable reading must be stored as NULL, never zero")
	assert.False(t, temp.Valid)
	require.True(t, topCPU.Valid)
	assert.Equal(t, "encoder", topCPU.String)
	assert.False(t, topIO.Valid)
}

func TestRecordUpsertsOnTimestamp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	ts := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	first := sample.Sample{Timestamp: ts}
	first.System.CPUPercent = sample.Avail(10)
	second := sample.Sample{Timestamp: ts}
	second.System.CPUPercent = sample.Avail(20)

	require.NoError(t, collector.Record(context.Background(), first))
	require.NoError(t, collector.Record(context.Background(), second))
	require.NoError(t, collector.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var cpu float64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), cpu_percent FROM samples`).Scan(&count, &cpu))
	assert.Equal(t, 1, count)
	assert.Equal(t, 20.0, cpu)
}

func TestDisabledServiceIsNoop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	collector, err := telemetry.NewService(telemetry.Config{Enabled: false, DBPath: dbPath})
	require.NoError(t, err)

	require.NoError(t, collector.Record(context.Background(), sample.Sample{Timestamp: time.Now()}))
	require.NoError(t, collector.Close())

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "disabled archive must not touch the database path")
}

func TestNewServiceRejectsEnabledWithoutPath(t *testing.T) {
	_, err := telemetry.NewService(telemetry.Config{Enabled: true})
	require.Error(t, err)
}
