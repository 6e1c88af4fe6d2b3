package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/perfwatch/internal/errors"
)

const (
	createTableSQL = `
        CREATE TABLE IF NOT EXISTS samples (
            timestamp             INTEGER PRIMARY KEY,
            cpu_percent           REAL,
            memory_percent        REAL,
            memory_used_gb        REAL,
            memory_total_gb       REAL,
            page_file_percent     REAL,
            disk_read_mbps        REAL,
            disk_write_mbps       REAL,
            disk_queue_length     REAL,
            disk_read_latency_ms  REAL,
            disk_write_latency_ms REAL,
            net_sent_mbps         REAL,
            net_received_mbps     REAL,
            gpu_percent           REAL,
            temperature_c         REAL,
            dpc_time_percent      REAL,
            interrupts_per_sec    REAL,
            uptime_seconds        REAL,
            top_cpu_process       TEXT,
            top_memory_process    TEXT,
            top_io_process        TEXT
        )`

	insertSampleSQL = `
        INSERT OR REPLACE INTO samples (
            timestamp,
            cpu_percent, memory_percent, memory_used_gb, memory_total_gb,
            page_file_percent,
            disk_read_mbps, disk_write_mbps, disk_queue_length,
            disk_read_latency_ms, disk_write_latency_ms,
            net_sent_mbps, net_received_mbps,
            gpu_percent, temperature_c,
            dpc_time_percent, interrupts_per_sec, uptime_seconds,
            top_cpu_process, top_memory_process, top_io_process
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// initSchema creates the archive table. Unavailable readings are stored
// as NULL, never as zero.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
