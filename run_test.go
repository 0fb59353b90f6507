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
package syncwatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/database/mocks"
	"github.com/syncwatch/syncwatch/model"
)

var testInstant = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// newTestSyncwatch builds an engine with a fixed clock and sequential ids so
// run timing and identifiers are deterministic.
func newTestSyncwatch(ds database.IDataSource) *Syncwatch {
	config.MockConfig(&config.Configuration{
		ProjectName: "Test",
		DataSource:  config.DataSourceConfig{Dns: "test"},
		Redis:       config.RedisConfig{Dns: "localhost:6379"},
	})
	cnf, _ := config.Fetch()
	comparator, _ := NewComparator(cnf.Reconciliation)

	var seq int64
	return &Syncwatch{
		datasource: ds,
		fieldSpecs: model.NewFieldSpecRegistry(),
		comparator: comparator,
		classifier: NewClassifier(cnf.Reconciliation.SeverityBands),
		clock:      model.FixedClock{Time: testInstant},
		newID: func(module string) string {
			return fmt.Sprintf("%s_%d", module, atomic.AddInt64(&seq, 1))
		},
	}
}

func TestStartRun(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	mockDS.On("RecordSyncRun", mock.Anything, mock.MatchedBy(func(run *model.SyncRun) bool {
		return run.Integration == "salesforce" &&
			run.Operation == model.OperationIncremental &&
			run.Status == model.RunStatusRunning &&
			run.StartedAt.Equal(testInstant)
	})).Return(nil)

	run, err := engine.StartRun(context.Background(), " Salesforce ", model.OperationIncremental, "scheduler")
	assert.NoError(t, err)
	assert.Equal(t, "salesforce", run.Integration)
	assert.Equal(t, "run_1", run.RunID)
	assert.True(t, run.Running())

	mockDS.AssertExpectations(t)
}

func TestStartRun_IntegrationBusy(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	mockDS.On("RecordSyncRun", mock.Anything, mock.Anything).Return(database.ErrActiveRunExists)

	_, err := engine.StartRun(context.Background(), "salesforce", model.OperationFull, "scheduler")
	assert.ErrorIs(t, err, ErrIntegrationBusy)
}

func TestStartRun_EmptyIntegration(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	_, err := engine.StartRun(context.Background(), "   ", model.OperationFull, "scheduler")
	assert.Error(t, err)
	mockDS.AssertNotCalled(t, "RecordSyncRun", mock.Anything, mock.Anything)
}

func TestStartRun_UnknownIntegration(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)
	config.MockConfig(&config.Configuration{
		Integrations: []config.IntegrationConfig{{Key: "salesforce"}},
	})

	_, err := engine.StartRun(context.Background(), "netsuite", model.OperationFull, "scheduler")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown integration")
}

func TestCompleteRun(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	startedAt := testInstant.Add(-90 * time.Second)
	running := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Operation:   model.OperationIncremental,
		Status:      model.RunStatusRunning,
		StartedAt:   startedAt,
	}

	mockDS.On("GetSyncRun", mock.Anything, "run_1").Return(running, nil)
	mockDS.On("CompleteSyncRun", mock.Anything, mock.MatchedBy(func(run *model.SyncRun) bool {
		return run.Status == model.RunStatusSuccess && run.DurationMs == 90000 && run.RecordsProcessed == 120
	})).Return(true, nil)

	counts := model.RunCounts{Processed: 120, Created: 20, Updated: 90, Failed: 10}
	run, err := engine.CompleteRun(context.Background(), "run_1", model.RunStatusSuccess, counts, "", "")
	assert.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, int64(90000), run.DurationMs)
	assert.NotNil(t, run.CompletedAt)

	mockDS.AssertExpectations(t)
}

func TestCompleteRun_NonTerminalStatus(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	_, err := engine.CompleteRun(context.Background(), "run_1", model.RunStatusRunning, model.RunCounts{}, "", "")
	assert.Error(t, err)
	mockDS.AssertNotCalled(t, "GetSyncRun", mock.Anything, mock.Anything)
}

func TestCompleteRun_InvalidCounts(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	counts := model.RunCounts{Processed: 5, Created: 4, Updated: 4, Failed: 0}
	_, err := engine.CompleteRun(context.Background(), "run_1", model.RunStatusSuccess, counts, "", "")
	assert.ErrorIs(t, err, ErrInvalidCounts)
}

func TestCompleteRun_AlreadyCompleted(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	completedAt := testInstant.Add(-time.Hour)
	settled := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Status:      model.RunStatusSuccess,
		StartedAt:   completedAt.Add(-time.Minute),
		CompletedAt: &completedAt,
	}

	mockDS.On("GetSyncRun", mock.Anything, "run_1").Return(settled, nil)

	run, err := engine.CompleteRun(context.Background(), "run_1", model.RunStatusFailed, model.RunCounts{}, "boom", "")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	// The settled run is returned untouched so retrying clients see the
	// recorded outcome.
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	mockDS.AssertNotCalled(t, "CompleteSyncRun", mock.Anything, mock.Anything)
}

func TestCompleteRun_UnknownRun(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	mockDS.On("GetSyncRun", mock.Anything, "run_missing").Return(nil, database.ErrNotFound)

	_, err := engine.CompleteRun(context.Background(), "run_missing", model.RunStatusSuccess, model.RunCounts{}, "", "")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestCompleteRun_LostRace(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	startedAt := testInstant.Add(-time.Minute)
	running := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Status:      model.RunStatusRunning,
		StartedAt:   startedAt,
	}
	completedAt := testInstant
	winner := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Status:      model.RunStatusFailed,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
	}

	mockDS.On("GetSyncRun", mock.Anything, "run_1").Return(running, nil).Once()
	mockDS.On("CompleteSyncRun", mock.Anything, mock.Anything).Return(false, nil)
	mockDS.On("GetSyncRun", mock.Anything, "run_1").Return(winner, nil).Once()

	run, err := engine.CompleteRun(context.Background(), "run_1", model.RunStatusSuccess, model.RunCounts{}, "", "")
	// The concurrent completion won; we surface its result plus the
	// already-completed sentinel so callers can tell theirs lost.
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	mockDS.AssertExpectations(t)
}

func TestCancelRun(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	running := &model.SyncRun{
		RunID:       "run_1",
		Integration: "salesforce",
		Status:      model.RunStatusRunning,
		StartedAt:   testInstant.Add(-time.Minute),
	}

	mockDS.On("GetSyncRun", mock.Anything, "run_1").Return(running, nil)
	mockDS.On("CompleteSyncRun", mock.Anything, mock.MatchedBy(func(run *model.SyncRun) bool {
		return run.Status == model.RunStatusFailed && run.ErrorMessage == "cancelled: stuck importer"
	})).Return(true, nil)

	run, err := engine.CancelRun(context.Background(), "run_1", "stuck importer", "ops@acme")
	assert.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	mockDS.AssertExpectations(t)
}

func TestListRecentRuns_DefaultLimit(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newTestSyncwatch(mockDS)

	mockDS.On("GetRecentSyncRuns", mock.Anything, "salesforce", 20).Return([]*model.SyncRun{}, nil)

	_, err := engine.ListRecentRuns(context.Background(), "salesforce", 0)
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
