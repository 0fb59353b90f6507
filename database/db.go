/*
Copyright 2025 Syncwatch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/syncwatch/syncwatch/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS syncwatch`); err != nil {
		return nil, err
	}
	err = createSyncRunTable(db)
	if err != nil {
		return nil, err
	}
	err = createDiscrepancyTable(db)
	if err != nil {
		return nil, err
	}
	err = createIntegrationHealthTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createSyncRunTable creates a PostgreSQL table for the SyncRun struct.
// The partial unique index is what serializes runs: at most one row per
// integration may be in running state at any time.
func createSyncRunTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS syncwatch.sync_runs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			integration TEXT NOT NULL,
			operation TEXT NOT NULL CHECK (operation IN ('full', 'incremental', 'manual')),
			status TEXT NOT NULL CHECK (status IN ('running', 'success', 'failed', 'partial')),
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			records_processed INTEGER NOT NULL DEFAULT 0,
			records_created INTEGER NOT NULL DEFAULT 0,
			records_updated INTEGER NOT NULL DEFAULT 0,
			records_failed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			error_details TEXT,
			triggered_by TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_runs_one_running
			ON syncwatch.sync_runs (integration) WHERE status = 'running';
		CREATE INDEX IF NOT EXISTS idx_sync_runs_integration_started
			ON syncwatch.sync_runs (integration, started_at DESC)
	`)
	if err != nil {
		log.Printf("Error creating sync_runs table: %v", err)
	}
	return err
}

// createDiscrepancyTable creates a PostgreSQL table for the Discrepancy struct
func createDiscrepancyTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS syncwatch.discrepancies (
			id BIGSERIAL PRIMARY KEY,
			discrepancy_id TEXT NOT NULL UNIQUE,
			run_id TEXT REFERENCES syncwatch.sync_runs(run_id),
			created_at TIMESTAMPTZ NOT NULL,
			entity_type TEXT NOT NULL,
			source_system TEXT NOT NULL,
			target_system TEXT NOT NULL,
			discrepancy_type TEXT NOT NULL CHECK (discrepancy_type IN ('missing', 'value_mismatch', 'status_mismatch')),
			source_id TEXT,
			target_id TEXT,
			entity_name TEXT,
			field_name TEXT,
			source_value TEXT,
			target_value TEXT,
			delta_percent DOUBLE PRECISION,
			severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'resolved', 'ignored')),
			resolved_at TIMESTAMPTZ,
			resolved_by TEXT,
			notes TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_discrepancies_status_severity
			ON syncwatch.discrepancies (status, severity);
		CREATE INDEX IF NOT EXISTS idx_discrepancies_run
			ON syncwatch.discrepancies (run_id)
	`)
	if err != nil {
		log.Printf("Error creating discrepancies table: %v", err)
	}
	return err
}

// createIntegrationHealthTable creates a PostgreSQL table for the
// IntegrationHealthSnapshot struct
func createIntegrationHealthTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS syncwatch.integration_health (
			id BIGSERIAL PRIMARY KEY,
			snapshot_id TEXT NOT NULL UNIQUE,
			integration TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('healthy', 'degraded', 'down')),
			last_successful_sync TIMESTAMPTZ,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			avg_sync_duration_ms BIGINT NOT NULL DEFAULT 0,
			total_records_today INTEGER NOT NULL DEFAULT 0,
			error_rate_percent DOUBLE PRECISION NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_integration_health_series
			ON syncwatch.integration_health (integration, created_at DESC)
	`)
	if err != nil {
		log.Printf("Error creating integration_health table: %v", err)
	}
	return err
}
