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
	"errors"
	"time"

	"github.com/syncwatch/syncwatch/model"
)

// Sentinel errors returned by datasource implementations. Callers detect them
// with errors.Is; implementations may wrap them with more context.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrActiveRunExists is returned when an insert collides with the
	// one-running-run-per-integration unique index.
	ErrActiveRunExists = errors.New("an active sync run already exists for this integration")
)

// DiscrepancyFilter narrows a discrepancy listing. Zero-value fields are
// ignored.
type DiscrepancyFilter struct {
	RunID      string
	EntityType string
	System     string // matches either source_system or target_system
	Type       model.DiscrepancyType
	Severity   model.Severity
	Status     model.DiscrepancyStatus
	Limit      int
	Offset     int
}

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	syncRun     // Interface for sync run operations
	discrepancy // Interface for discrepancy operations
	health      // Interface for integration health operations
}

// syncRun defines methods for handling sync runs.
type syncRun interface {
	RecordSyncRun(ctx context.Context, run *model.SyncRun) error                                          // Records a new running sync run
	GetSyncRun(ctx context.Context, runID string) (*model.SyncRun, error)                                 // Retrieves a sync run by ID
	CompleteSyncRun(ctx context.Context, run *model.SyncRun) (bool, error)                                // Writes terminal state once; false if the run was no longer running
	GetRecentSyncRuns(ctx context.Context, integration string, limit int) ([]*model.SyncRun, error)       // Retrieves the newest runs for an integration
	GetSyncRuns(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.SyncRun, error) // Retrieves runs filtered by integration and start-time range
	GetSyncRunsSince(ctx context.Context, integration string, since time.Time) ([]*model.SyncRun, error)  // Retrieves all runs started since an instant, newest first
	GetIntegrationsWithRuns(ctx context.Context) ([]string, error)                                        // Lists integrations that have at least one run
}

// discrepancy defines methods for handling discrepancies.
type discrepancy interface {
	RecordDiscrepancies(ctx context.Context, discrepancies []model.Discrepancy) error                                                                                // Records a batch of discrepancies atomically
	GetDiscrepancy(ctx context.Context, discrepancyID string) (*model.Discrepancy, error)                                                                            // Retrieves a discrepancy by ID
	GetDiscrepancies(ctx context.Context, filter DiscrepancyFilter) ([]*model.Discrepancy, error)                                                                    // Retrieves discrepancies matching a filter
	TransitionDiscrepancy(ctx context.Context, discrepancyID string, status model.DiscrepancyStatus, resolvedBy, notes string, resolvedAt time.Time) (bool, error)   // Compare-and-swaps pending to a terminal status; false if the row was not pending
	AppendDiscrepancyNotes(ctx context.Context, discrepancyID, notes string) error                                                                                   // Appends operator notes to a discrepancy
}

// health defines methods for handling integration health snapshots.
type health interface {
	RecordHealthSnapshot(ctx context.Context, snapshot *model.IntegrationHealthSnapshot) error                                                  // Appends a new health snapshot
	GetLatestHealthSnapshot(ctx context.Context, integration string) (*model.IntegrationHealthSnapshot, error)                                   // Retrieves the newest snapshot for an integration
	GetHealthSnapshots(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.IntegrationHealthSnapshot, error)       // Retrieves the snapshot time series, newest first
}
