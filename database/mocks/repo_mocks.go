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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Sync run methods

func (m *MockDataSource) RecordSyncRun(ctx context.Context, run *model.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) GetSyncRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncRun), args.Error(1)
}

func (m *MockDataSource) CompleteSyncRun(ctx context.Context, run *model.SyncRun) (bool, error) {
	args := m.Called(ctx, run)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetRecentSyncRuns(ctx context.Context, integration string, limit int) ([]*model.SyncRun, error) {
	args := m.Called(ctx, integration, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SyncRun), args.Error(1)
}

func (m *MockDataSource) GetSyncRuns(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.SyncRun, error) {
	args := m.Called(ctx, integration, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SyncRun), args.Error(1)
}

func (m *MockDataSource) GetSyncRunsSince(ctx context.Context, integration string, since time.Time) ([]*model.SyncRun, error) {
	args := m.Called(ctx, integration, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SyncRun), args.Error(1)
}

func (m *MockDataSource) GetIntegrationsWithRuns(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Discrepancy methods

func (m *MockDataSource) RecordDiscrepancies(ctx context.Context, discrepancies []model.Discrepancy) error {
	args := m.Called(ctx, discrepancies)
	return args.Error(0)
}

func (m *MockDataSource) GetDiscrepancy(ctx context.Context, discrepancyID string) (*model.Discrepancy, error) {
	args := m.Called(ctx, discrepancyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Discrepancy), args.Error(1)
}

func (m *MockDataSource) GetDiscrepancies(ctx context.Context, filter database.DiscrepancyFilter) ([]*model.Discrepancy, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Discrepancy), args.Error(1)
}

func (m *MockDataSource) TransitionDiscrepancy(ctx context.Context, discrepancyID string, status model.DiscrepancyStatus, resolvedBy, notes string, resolvedAt time.Time) (bool, error) {
	args := m.Called(ctx, discrepancyID, status, resolvedBy, notes, resolvedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) AppendDiscrepancyNotes(ctx context.Context, discrepancyID, notes string) error {
	args := m.Called(ctx, discrepancyID, notes)
	return args.Error(0)
}

// Health methods

func (m *MockDataSource) RecordHealthSnapshot(ctx context.Context, snapshot *model.IntegrationHealthSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockDataSource) GetLatestHealthSnapshot(ctx context.Context, integration string) (*model.IntegrationHealthSnapshot, error) {
	args := m.Called(ctx, integration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntegrationHealthSnapshot), args.Error(1)
}

func (m *MockDataSource) GetHealthSnapshots(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.IntegrationHealthSnapshot, error) {
	args := m.Called(ctx, integration, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.IntegrationHealthSnapshot), args.Error(1)
}
