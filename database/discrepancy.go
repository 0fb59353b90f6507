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

const discrepancyColumns = `
	id, discrepancy_id, run_id, created_at, entity_type, source_system,
	target_system, discrepancy_type, source_id, target_id, entity_name,
	field_name, source_value, target_value, delta_percent, severity, status,
	resolved_at, resolved_by, notes`

// RecordDiscrepancies inserts a batch of discrepancies in one transaction.
// Either the whole batch lands or none of it does.
func (d Datasource) RecordDiscrepancies(ctx context.Context, discrepancies []model.Discrepancy) error {
	ctx, span := otel.Tracer("Discrepancy").Start(ctx, "Saving discrepancy batch to db")
	defer span.End()

	if len(discrepancies) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin discrepancy transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("syncwatch", "discrepancies",
		"discrepancy_id", "run_id", "created_at", "entity_type", "source_system",
		"target_system", "discrepancy_type", "source_id", "target_id", "entity_name",
		"field_name", "source_value", "target_value", "delta_percent", "severity",
		"status", "resolved_by", "notes"))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to prepare discrepancy copy")
	}

	for _, disc := range discrepancies {
		_, err = stmt.ExecContext(ctx,
			disc.DiscrepancyID, nullString(disc.RunID), disc.CreatedAt, disc.EntityType,
			disc.SourceSystem, disc.TargetSystem, disc.DiscrepancyType,
			nullString(disc.SourceID), nullString(disc.TargetID), nullString(disc.EntityName),
			disc.FieldName, disc.SourceValue, disc.TargetValue, disc.DeltaPercent,
			disc.Severity, disc.Status, nullString(disc.ResolvedBy), nullString(disc.Notes),
		)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to stage discrepancy %q", disc.DiscrepancyID)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return pkgerrors.Wrap(err, "failed to flush discrepancy copy")
	}
	if err := stmt.Close(); err != nil {
		return pkgerrors.Wrap(err, "failed to close discrepancy copy")
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit discrepancy batch")
	}
	return nil
}

// GetDiscrepancy retrieves a discrepancy by its ID.
func (d Datasource) GetDiscrepancy(ctx context.Context, discrepancyID string) (*model.Discrepancy, error) {
	ctx, span := otel.Tracer("Discrepancy").Start(ctx, "Fetching discrepancy from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+discrepancyColumns+`
		FROM syncwatch.discrepancies
		WHERE discrepancy_id = $1
	`, discrepancyID)

	disc, err := scanDiscrepancy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.Wrapf(ErrNotFound, "discrepancy %q", discrepancyID)
		}
		return nil, pkgerrors.Wrap(err, "failed to retrieve discrepancy")
	}
	return disc, nil
}

// GetDiscrepancies retrieves discrepancies matching a filter, newest first.
func (d Datasource) GetDiscrepancies(ctx context.Context, filter DiscrepancyFilter) ([]*model.Discrepancy, error) {
	ctx, span := otel.Tracer("Discrepancy").Start(ctx, "Fetching discrepancies from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+discrepancyColumns+`
		FROM syncwatch.discrepancies
		WHERE ($1 = '' OR run_id = $1)
			AND ($2 = '' OR entity_type = $2)
			AND ($3 = '' OR source_system = $3 OR target_system = $3)
			AND ($4 = '' OR discrepancy_type = $4)
			AND ($5 = '' OR severity = $5)
			AND ($6 = '' OR status = $6)
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8
	`, filter.RunID, filter.EntityType, filter.System, string(filter.Type),
		string(filter.Severity), string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to retrieve discrepancies")
	}
	defer rows.Close()

	var discrepancies []*model.Discrepancy
	for rows.Next() {
		disc, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan discrepancy")
		}
		discrepancies = append(discrepancies, disc)
	}
	return discrepancies, rows.Err()
}

// TransitionDiscrepancy compare-and-swaps a pending discrepancy into a
// terminal status. A false return means the row was no longer pending, and
// nothing was written.
func (d Datasource) TransitionDiscrepancy(ctx context.Context, discrepancyID string, status model.DiscrepancyStatus, resolvedBy, notes string, resolvedAt time.Time) (bool, error) {
	ctx, span := otel.Tracer("Discrepancy").Start(ctx, "Transitioning discrepancy in db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE syncwatch.discrepancies
		SET status = $2, resolved_by = $3, resolved_at = $4,
			notes = CASE
				WHEN $5 = '' THEN notes
				WHEN notes IS NULL OR notes = '' THEN $5
				ELSE notes || E'\n' || $5
			END
		WHERE discrepancy_id = $1 AND status = 'pending'
	`, discrepancyID, status, resolvedBy, resolvedAt, notes)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to transition discrepancy")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to get rows affected")
	}
	return affected == 1, nil
}

// AppendDiscrepancyNotes appends operator notes to a discrepancy without
// touching its status.
func (d Datasource) AppendDiscrepancyNotes(ctx context.Context, discrepancyID, notes string) error {
	ctx, span := otel.Tracer("Discrepancy").Start(ctx, "Appending discrepancy notes in db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE syncwatch.discrepancies
		SET notes = CASE
			WHEN notes IS NULL OR notes = '' THEN $2
			ELSE notes || E'\n' || $2
		END
		WHERE discrepancy_id = $1
	`, discrepancyID, notes)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to append discrepancy notes")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return pkgerrors.Wrapf(ErrNotFound, "discrepancy %q", discrepancyID)
	}
	return nil
}

func scanDiscrepancy(row rowScanner) (*model.Discrepancy, error) {
	disc := &model.Discrepancy{}
	var runID, sourceID, targetID, entityName, resolvedBy, notes sql.NullString
	var fieldName, sourceValue, targetValue sql.NullString
	var deltaPercent sql.NullFloat64
	var resolvedAt sql.NullTime
	err := row.Scan(
		&disc.ID, &disc.DiscrepancyID, &runID, &disc.CreatedAt, &disc.EntityType,
		&disc.SourceSystem, &disc.TargetSystem, &disc.DiscrepancyType,
		&sourceID, &targetID, &entityName,
		&fieldName, &sourceValue, &targetValue, &deltaPercent,
		&disc.Severity, &disc.Status, &resolvedAt, &resolvedBy, &notes,
	)
	if err != nil {
		return nil, err
	}
	disc.RunID = runID.String
	disc.SourceID = sourceID.String
	disc.TargetID = targetID.String
	disc.EntityName = entityName.String
	disc.ResolvedBy = resolvedBy.String
	disc.Notes = notes.String
	if fieldName.Valid {
		disc.FieldName = &fieldName.String
	}
	if sourceValue.Valid {
		disc.SourceValue = &sourceValue.String
	}
	if targetValue.Valid {
		disc.TargetValue = &targetValue.String
	}
	if deltaPercent.Valid {
		disc.DeltaPercent = &deltaPercent.Float64
	}
	if resolvedAt.Valid {
		disc.ResolvedAt = &resolvedAt.Time
	}
	return disc, nil
}
