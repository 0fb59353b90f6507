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
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/syncwatch/syncwatch/model"
)

const syncRunColumns = `
	id, run_id, integration, operation, status, started_at, completed_at,
	records_processed, records_created, records_updated, records_failed,
	error_message, error_details, triggered_by, duration_ms`

// RecordSyncRun inserts a new running sync run. The partial unique index over
// running runs makes concurrent starts race safely: the loser gets
// ErrActiveRunExists.
func (d Datasource) RecordSyncRun(ctx context.Context, run *model.SyncRun) error {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Saving sync run to db")
	defer span.End()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO syncwatch.sync_runs(
			run_id, integration, operation, status, started_at, triggered_by
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, run.RunID, run.Integration, run.Operation, run.Status, run.StartedAt, run.TriggeredBy).Scan(&run.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			if pqErr.Constraint == "idx_sync_runs_one_running" {
				return pkgerrors.Wrapf(ErrActiveRunExists, "integration %q", run.Integration)
			}
			return pkgerrors.Wrapf(err, "sync run %q already recorded", run.RunID)
		}
		return pkgerrors.Wrap(err, "failed to record sync run")
	}
	return nil
}

// GetSyncRun retrieves a sync run by its ID.
func (d Datasource) GetSyncRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Fetching sync run from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+syncRunColumns+`
		FROM syncwatch.sync_runs
		WHERE run_id = $1
	`, runID)

	run, err := scanSyncRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.Wrapf(ErrNotFound, "sync run %q", runID)
		}
		return nil, pkgerrors.Wrap(err, "failed to retrieve sync run")
	}
	return run, nil
}

// CompleteSyncRun writes the terminal state of a run exactly once. The update
// is guarded on status = 'running'; a false return means another completion
// got there first and the row is untouched.
func (d Datasource) CompleteSyncRun(ctx context.Context, run *model.SyncRun) (bool, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Completing sync run in db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE syncwatch.sync_runs
		SET status = $2, completed_at = $3, records_processed = $4,
			records_created = $5, records_updated = $6, records_failed = $7,
			error_message = $8, error_details = $9, duration_ms = $10
		WHERE run_id = $1 AND status = 'running'
	`, run.RunID, run.Status, run.CompletedAt, run.RecordsProcessed,
		run.RecordsCreated, run.RecordsUpdated, run.RecordsFailed,
		nullString(run.ErrorMessage), nullString(run.ErrorDetails), run.DurationMs)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to complete sync run")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to get rows affected")
	}
	return affected == 1, nil
}

// GetRecentSyncRuns retrieves the newest runs for an integration.
func (d Datasource) GetRecentSyncRuns(ctx context.Context, integration string, limit int) ([]*model.SyncRun, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Fetching recent sync runs from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+syncRunColumns+`
		FROM syncwatch.sync_runs
		WHERE integration = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, integration, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to retrieve sync runs")
	}
	defer rows.Close()

	return collectSyncRuns(rows)
}

// GetSyncRuns retrieves runs filtered by integration and start-time range,
// newest first. An empty integration matches all integrations.
func (d Datasource) GetSyncRuns(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.SyncRun, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Fetching sync runs from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+syncRunColumns+`
		FROM syncwatch.sync_runs
		WHERE ($1 = '' OR integration = $1)
			AND started_at >= $2 AND started_at <= $3
		ORDER BY started_at DESC
		LIMIT $4
	`, integration, from, to, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to retrieve sync runs")
	}
	defer rows.Close()

	return collectSyncRuns(rows)
}

// GetSyncRunsSince retrieves every run for an integration started at or after
// an instant, newest first. The health aggregator feeds on this.
func (d Datasource) GetSyncRunsSince(ctx context.Context, integration string, since time.Time) ([]*model.SyncRun, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Fetching sync run window from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+syncRunColumns+`
		FROM syncwatch.sync_runs
		WHERE integration = $1 AND started_at >= $2
		ORDER BY started_at DESC
	`, integration, since)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to retrieve sync run window")
	}
	defer rows.Close()

	return collectSyncRuns(rows)
}

// GetIntegrationsWithRuns lists every integration that has recorded at least
// one run.
func (d Datasource) GetIntegrationsWithRuns(ctx context.Context) ([]string, error) {
	ctx, span := otel.Tracer("SyncRun").Start(ctx, "Listing integrations from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT DISTINCT integration
		FROM syncwatch.sync_runs
		ORDER BY integration
	`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list integrations")
	}
	defer rows.Close()

	var integrations []string
	for rows.Next() {
		var integration string
		if err := rows.Scan(&integration); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan integration")
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncRun(row rowScanner) (*model.SyncRun, error) {
	run := &model.SyncRun{}
	var completedAt sql.NullTime
	var errMessage, errDetails, triggeredBy sql.NullString
	err := row.Scan(
		&run.ID, &run.RunID, &run.Integration, &run.Operation, &run.Status,
		&run.StartedAt, &completedAt,
		&run.RecordsProcessed, &run.RecordsCreated, &run.RecordsUpdated, &run.RecordsFailed,
		&errMessage, &errDetails, &triggeredBy, &run.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.ErrorMessage = errMessage.String
	run.ErrorDetails = errDetails.String
	run.TriggeredBy = triggeredBy.String
	return run, nil
}

func collectSyncRuns(rows *sql.Rows) ([]*model.SyncRun, error) {
	var runs []*model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan sync run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
