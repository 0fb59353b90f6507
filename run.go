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
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/model"
)

// StartRun opens a new sync run for an integration. Runs for the same
// integration are serialized: the insert races on a partial unique index over
// running runs, so exactly one of two concurrent starts wins and the other
// gets ErrIntegrationBusy.
func (s *Syncwatch) StartRun(ctx context.Context, integration string, operation model.OperationKind, triggeredBy string) (*model.SyncRun, error) {
	ctx, span := otel.Tracer("syncwatch.run").Start(ctx, "Starting sync run")
	defer span.End()

	integration = model.NormalizeKey(integration)
	if integration == "" {
		return nil, fmt.Errorf("integration key is required")
	}
	if !s.knownIntegration(integration) {
		return nil, fmt.Errorf("unknown integration %q", integration)
	}

	run := &model.SyncRun{
		RunID:       s.generateID("run"),
		Integration: integration,
		Operation:   operation,
		Status:      model.RunStatusRunning,
		StartedAt:   s.now(),
		TriggeredBy: triggeredBy,
	}

	if err := s.datasource.RecordSyncRun(ctx, run); err != nil {
		if errors.Is(err, database.ErrActiveRunExists) {
			return nil, ErrIntegrationBusy
		}
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Sync run started", trace.WithAttributes(
		attribute.String("run.id", run.RunID),
		attribute.String("run.integration", integration),
	))

	logrus.WithFields(logrus.Fields{
		"run_id":      run.RunID,
		"integration": integration,
		"operation":   operation,
	}).Info("sync run started")

	return run, nil
}

// CompleteRun transitions a run to a terminal status exactly once and
// computes its duration. A second completion for the same run changes
// nothing: it logs a warning and reports ErrAlreadyCompleted.
func (s *Syncwatch) CompleteRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, errMessage, errDetails string) (*model.SyncRun, error) {
	ctx, span := otel.Tracer("syncwatch.run").Start(ctx, "Completing sync run")
	defer span.End()

	if !status.Terminal() {
		return nil, fmt.Errorf("%q is not a terminal run status", status)
	}
	if err := counts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCounts, err)
	}

	run, err := s.datasource.GetSyncRun(ctx, runID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownRun
		}
		return nil, err
	}
	if run.Status.Terminal() {
		logrus.WithField("run_id", runID).Warnf("completeRun called on a %s run; ignoring", run.Status)
		return run, ErrAlreadyCompleted
	}

	if err := run.Complete(status, counts, s.now(), errMessage, errDetails); err != nil {
		return nil, err
	}

	updated, err := s.datasource.CompleteSyncRun(ctx, run)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !updated {
		// Lost a race against another completion. The first write won and the
		// row is untouched by us.
		logrus.WithField("run_id", runID).Warn("run completed concurrently; keeping first result")
		return s.refetchRun(ctx, runID)
	}

	span.AddEvent("Sync run completed", trace.WithAttributes(
		attribute.String("run.id", run.RunID),
		attribute.String("run.status", string(run.Status)),
	))

	logrus.WithFields(logrus.Fields{
		"run_id":      run.RunID,
		"integration": run.Integration,
		"status":      run.Status,
		"duration_ms": run.DurationMs,
		"processed":   run.RecordsProcessed,
		"failed":      run.RecordsFailed,
	}).Info("sync run completed")

	s.afterRunCompleted(ctx, run)

	return run, nil
}

// afterRunCompleted schedules the follow-up work a terminal run triggers. A
// queue hiccup must not fail the completion itself, so problems are logged
// and swallowed.
func (s *Syncwatch) afterRunCompleted(ctx context.Context, run *model.SyncRun) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueHealthAggregation(ctx, run.Integration); err != nil {
		logrus.WithField("run_id", run.RunID).Warnf("failed to enqueue health aggregation: %v", err)
	}
	if run.Status == model.RunStatusFailed {
		err := s.queue.EnqueueNotification(ctx, "sync_run.failed", map[string]interface{}{
			"run_id":         run.RunID,
			"integration":    run.Integration,
			"operation":      string(run.Operation),
			"error_message":  run.ErrorMessage,
			"records_failed": run.RecordsFailed,
		})
		if err != nil {
			logrus.WithField("run_id", run.RunID).Warnf("failed to enqueue failure notification: %v", err)
		}
	}
}

// CancelRun lets an external supervisor mark a running run failed with an
// explicit cancellation reason. It shares CompleteRun's exactly-once
// semantics and frees the per-integration serialization slot.
func (s *Syncwatch) CancelRun(ctx context.Context, runID, reason, cancelledBy string) (*model.SyncRun, error) {
	if reason == "" {
		reason = "no reason given"
	}
	message := fmt.Sprintf("cancelled: %s", reason)
	details := fmt.Sprintf("run cancelled by %s", cancelledBy)
	return s.CompleteRun(ctx, runID, model.RunStatusFailed, model.RunCounts{}, message, details)
}

// GetRun fetches one run by id.
func (s *Syncwatch) GetRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	run, err := s.datasource.GetSyncRun(ctx, runID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownRun
		}
		return nil, err
	}
	return run, nil
}

// ListRecentRuns returns the newest runs for an integration, newest first.
func (s *Syncwatch) ListRecentRuns(ctx context.Context, integration string, limit int) ([]*model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.datasource.GetRecentSyncRuns(ctx, model.NormalizeKey(integration), limit)
}

// ListRuns returns runs filtered by integration and start-time range, newest
// first. An empty integration matches all integrations.
func (s *Syncwatch) ListRuns(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if to.IsZero() {
		to = s.now()
	}
	return s.datasource.GetSyncRuns(ctx, model.NormalizeKey(integration), from, to, limit)
}

func (s *Syncwatch) refetchRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	run, err := s.datasource.GetSyncRun(ctx, runID)
	if err != nil {
		return nil, ErrAlreadyCompleted
	}
	return run, ErrAlreadyCompleted
}
