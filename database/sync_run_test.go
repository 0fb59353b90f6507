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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/syncwatch/syncwatch/model"
)

func syncRunRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "run_id", "integration", "operation", "status", "started_at", "completed_at",
		"records_processed", "records_created", "records_updated", "records_failed",
		"error_message", "error_details", "triggered_by", "duration_ms",
	})
}

func TestRecordSyncRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	run := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Operation:   model.OperationIncremental,
		Status:      model.RunStatusRunning,
		StartedAt:   time.Now(),
		TriggeredBy: "scheduler",
	}

	mock.ExpectQuery("INSERT INTO syncwatch.sync_runs").
		WithArgs(run.RunID, run.Integration, run.Operation, run.Status, run.StartedAt, run.TriggeredBy).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	err = ds.RecordSyncRun(context.Background(), run)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSyncRun_ActiveRunExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	run := &model.SyncRun{
		RunID:       "run_2",
		Integration: "salesforce",
		Operation:   model.OperationIncremental,
		Status:      model.RunStatusRunning,
		StartedAt:   time.Now(),
	}

	mock.ExpectQuery("INSERT INTO syncwatch.sync_runs").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_sync_runs_one_running"})

	err = ds.RecordSyncRun(context.Background(), run)
	assert.ErrorIs(t, err, ErrActiveRunExists)
}

func TestRecordSyncRun_DuplicateRunID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	run := &model.SyncRun{RunID: "run_3", Integration: "salesforce", StartedAt: time.Now()}

	mock.ExpectQuery("INSERT INTO syncwatch.sync_runs").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "sync_runs_run_id_key"})

	err = ds.RecordSyncRun(context.Background(), run)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrActiveRunExists)
}

func TestGetSyncRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	startedAt := time.Now().Add(-time.Minute)
	completedAt := time.Now()
	rows := syncRunRows().AddRow(
		int64(1), "run_1", "salesforce", "incremental", "success", startedAt, completedAt,
		100, 20, 70, 10, nil, nil, "scheduler", int64(60000),
	)

	mock.ExpectQuery("SELECT (.+) FROM syncwatch.sync_runs WHERE run_id").
		WithArgs("run_1").
		WillReturnRows(rows)

	run, err := ds.GetSyncRun(context.Background(), "run_1")
	assert.NoError(t, err)
	assert.Equal(t, "run_1", run.RunID)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, int64(60000), run.DurationMs)
	assert.Empty(t, run.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncRun_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM syncwatch.sync_runs WHERE run_id").
		WithArgs("run_missing").
		WillReturnRows(syncRunRows())

	_, err = ds.GetSyncRun(context.Background(), "run_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteSyncRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	completedAt := time.Now()
	run := &model.SyncRun{
		RunID:            "run_1",
		Status:           model.RunStatusSuccess,
		CompletedAt:      &completedAt,
		RecordsProcessed: 100,
		RecordsCreated:   20,
		RecordsUpdated:   70,
		RecordsFailed:    10,
		DurationMs:       60000,
	}

	mock.ExpectExec("UPDATE syncwatch.sync_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	completed, err := ds.CompleteSyncRun(context.Background(), run)
	assert.NoError(t, err)
	assert.True(t, completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSyncRun_LostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	completedAt := time.Now()
	run := &model.SyncRun{RunID: "run_1", Status: model.RunStatusFailed, CompletedAt: &completedAt}

	mock.ExpectExec("UPDATE syncwatch.sync_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	completed, err := ds.CompleteSyncRun(context.Background(), run)
	assert.NoError(t, err)
	assert.False(t, completed)
}

func TestGetRecentSyncRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := syncRunRows().
		AddRow(int64(2), "run_2", "salesforce", "incremental", "failed", time.Now(), time.Now(),
			10, 0, 0, 10, "connector timeout", nil, "scheduler", int64(5000)).
		AddRow(int64(1), "run_1", "salesforce", "incremental", "success", time.Now().Add(-time.Hour), time.Now().Add(-time.Hour),
			100, 20, 70, 10, nil, nil, "scheduler", int64(60000))

	mock.ExpectQuery("SELECT (.+) FROM syncwatch.sync_runs WHERE integration").
		WithArgs("salesforce", 20).
		WillReturnRows(rows)

	runs, err := ds.GetRecentSyncRuns(context.Background(), "salesforce", 20)
	assert.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, "run_2", runs[0].RunID)
	assert.Equal(t, "connector timeout", runs[0].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncRunsSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	since := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM syncwatch.sync_runs WHERE integration = (.+) AND started_at >=").
		WithArgs("salesforce", since).
		WillReturnRows(syncRunRows())

	runs, err := ds.GetSyncRunsSince(context.Background(), "salesforce", since)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGetIntegrationsWithRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT DISTINCT integration").
		WillReturnRows(sqlmock.NewRows([]string{"integration"}).AddRow("quickbooks").AddRow("salesforce"))

	integrations, err := ds.GetIntegrationsWithRuns(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"quickbooks", "salesforce"}, integrations)
}
