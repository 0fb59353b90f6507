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

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/syncwatch/syncwatch/model"
)

const healthColumns = `
	id, snapshot_id, integration, created_at, status, last_successful_sync,
	consecutive_failures, avg_sync_duration_ms, total_records_today,
	error_rate_percent`

// RecordHealthSnapshot appends a new snapshot to the health time series.
// Snapshots are never updated in place.
func (d Datasource) RecordHealthSnapshot(ctx context.Context, snapshot *model.IntegrationHealthSnapshot) error {
	ctx, span := otel.Tracer("Health").Start(ctx, "Saving health snapshot to db")
	defer span.End()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO syncwatch.integration_health(
			snapshot_id, integration, created_at, status, last_successful_sync,
			consecutive_failures, avg_sync_duration_ms, total_records_today,
			error_rate_percent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, snapshot.SnapshotID, snapshot.Integration, snapshot.CreatedAt, snapshot.Status,
		snapshot.LastSuccessfulSync, snapshot.ConsecutiveFailures,
		snapshot.AvgSyncDurationMs, snapshot.TotalRecordsToday,
		snapshot.ErrorRatePercent).Scan(&snapshot.ID)

	if err != nil {
		return pkgerrors.Wrap(err, "failed to record health snapshot")
	}
	return nil
}

// GetLatestHealthSnapshot retrieves the newest snapshot for an integration.
func (d Datasource) GetLatestHealthSnapshot(ctx context.Context, integration string) (*model.IntegrationHealthSnapshot, error) {
	ctx, span := otel.Tracer("Health").Start(ctx, "Fetching latest health snapshot from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+healthColumns+`
		FROM syncwatch.integration_health
		WHERE integration = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, integration)

	snapshot, err := scanHealthSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.Wrapf(ErrNotFound, "no health snapshot for %q", integration)
		}
		return nil, pkgerrors.Wrap(err, "failed to retrieve health snapshot")
	}
	return snapshot, nil
}

// GetHealthSnapshots retrieves the snapshot time series for an integration,
// newest first.
func (d Datasource) GetHealthSnapshots(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.IntegrationHealthSnapshot, error) {
	ctx, span := otel.Tracer("Health").Start(ctx, "Fetching health snapshot series from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+healthColumns+`
		FROM syncwatch.integration_health
		WHERE integration = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, integration, from, to, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to retrieve health snapshots")
	}
	defer rows.Close()

	var snapshots []*model.IntegrationHealthSnapshot
	for rows.Next() {
		snapshot, err := scanHealthSnapshot(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan health snapshot")
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func scanHealthSnapshot(row rowScanner) (*model.IntegrationHealthSnapshot, error) {
	snapshot := &model.IntegrationHealthSnapshot{}
	var lastSuccess sql.NullTime
	err := row.Scan(
		&snapshot.ID, &snapshot.SnapshotID, &snapshot.Integration, &snapshot.CreatedAt,
		&snapshot.Status, &lastSuccess, &snapshot.ConsecutiveFailures,
		&snapshot.AvgSyncDurationMs, &snapshot.TotalRecordsToday,
		&snapshot.ErrorRatePercent,
	)
	if err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		snapshot.LastSuccessfulSync = &lastSuccess.Time
	}
	return snapshot, nil
}
