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

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/database"
	redlock "github.com/syncwatch/syncwatch/internal/lock"
	"github.com/syncwatch/syncwatch/internal/notification"
	"github.com/syncwatch/syncwatch/model"
)

const healthCacheTTL = 10 * time.Minute

func healthCacheKey(integration string) string {
	return fmt.Sprintf("syncwatch:health:latest:%s", integration)
}

// AggregateAll computes a fresh health snapshot for every integration that
// has at least one run in the retention window. Integrations that cannot be
// aggregated are skipped, never written as degenerate snapshots.
func (s *Syncwatch) AggregateAll(ctx context.Context) error {
	integrations, err := s.datasource.GetIntegrationsWithRuns(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, integration := range integrations {
		if _, err := s.AggregateIntegration(ctx, integration); err != nil {
			logrus.WithField("integration", integration).Errorf("health aggregation failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AggregateIntegration rolls recent runs up into one new snapshot for one
// integration. Overlapping ticks are deduplicated by a per-integration redis
// guard: if a slow tick still holds the guard, this tick skips the
// integration instead of queueing behind it.
func (s *Syncwatch) AggregateIntegration(ctx context.Context, integration string) (*model.IntegrationHealthSnapshot, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	integration = model.NormalizeKey(integration)

	guard := redlock.NewLocker(s.redis, fmt.Sprintf("syncwatch:health:aggregating:%s", integration), s.generateID("tick"))
	acquired, err := guard.TryLock(ctx, cfg.Health.AggregationInterval())
	if err != nil {
		return nil, err
	}
	if !acquired {
		logrus.WithField("integration", integration).Debug("aggregation already in progress, skipping tick")
		return nil, nil
	}
	defer func() {
		if err := guard.Unlock(ctx); err != nil {
			logrus.WithField("integration", integration).Warnf("failed to release aggregation guard: %v", err)
		}
	}()

	now := s.now()
	since := now.Add(-time.Duration(cfg.Health.RetentionDays) * 24 * time.Hour)
	runs, err := s.datasource.GetSyncRunsSince(ctx, integration, since)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		// No runs yet: nothing to derive a status from.
		return nil, nil
	}

	location := s.comparator.location
	snapshot := ComputeHealthSnapshot(integration, runs, now, location, cfg.Health)
	snapshot.SnapshotID = s.generateID("snap")

	previous, err := s.datasource.GetLatestHealthSnapshot(ctx, integration)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if err := s.datasource.RecordHealthSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, healthCacheKey(integration), snapshot, healthCacheTTL); err != nil {
			logrus.Warnf("failed to cache health snapshot for %s: %v", integration, err)
		}
	}

	if snapshot.Status == model.HealthDown && (previous == nil || previous.Status != model.HealthDown) {
		notification.NotifyIntegrationDown(integration, snapshot.ConsecutiveFailures, snapshot.LastSuccessfulSync)
	}

	logrus.WithFields(logrus.Fields{
		"integration":          integration,
		"status":               snapshot.Status,
		"consecutive_failures": snapshot.ConsecutiveFailures,
		"error_rate":           snapshot.ErrorRatePercent,
	}).Info("health snapshot recorded")

	return snapshot, nil
}

// ComputeHealthSnapshot is the pure rollup: the same runs, instant and
// configuration always produce the same snapshot. Runs must be ordered
// newest first.
func ComputeHealthSnapshot(integration string, runs []*model.SyncRun, now time.Time, location *time.Location, cfg config.HealthConfig) *model.IntegrationHealthSnapshot {
	snapshot := &model.IntegrationHealthSnapshot{
		Integration: integration,
		CreatedAt:   now,
	}

	// Consecutive failures count newest-first over terminal runs and stop at
	// the most recent success. A still-running run neither fails nor resets.
	counting := true
	var completedSeen int
	var durationTotal int64
	var durationCount int64
	var errorRateTotal float64
	var errorRateRuns int

	if location == nil {
		location = time.UTC
	}
	midnight := time.Date(now.In(location).Year(), now.In(location).Month(), now.In(location).Day(), 0, 0, 0, 0, location)

	for _, run := range runs {
		if run.Status == model.RunStatusSuccess {
			if snapshot.LastSuccessfulSync == nil {
				startedAt := run.StartedAt
				snapshot.LastSuccessfulSync = &startedAt
			}
			counting = false
		} else if run.Status.Terminal() && counting {
			snapshot.ConsecutiveFailures++
		}

		if run.Status.Terminal() && completedSeen < cfg.AvgWindowRuns {
			completedSeen++
			durationTotal += run.DurationMs
			durationCount++
			if run.RecordsProcessed > 0 {
				errorRateTotal += float64(run.RecordsFailed) / float64(run.RecordsProcessed) * 100
				errorRateRuns++
			}
		}

		if !run.StartedAt.Before(midnight) {
			snapshot.TotalRecordsToday += run.RecordsProcessed
		}
	}

	if durationCount > 0 {
		snapshot.AvgSyncDurationMs = durationTotal / durationCount
	}
	if errorRateRuns > 0 {
		snapshot.ErrorRatePercent = errorRateTotal / float64(errorRateRuns)
	}

	snapshot.Status = deriveHealthStatus(snapshot, now, cfg)
	return snapshot
}

// deriveHealthStatus evaluates the status rules in order; the first match
// wins.
func deriveHealthStatus(snapshot *model.IntegrationHealthSnapshot, now time.Time, cfg config.HealthConfig) model.HealthStatus {
	noRecentSuccess := snapshot.LastSuccessfulSync == nil || now.Sub(*snapshot.LastSuccessfulSync) > cfg.SLAWindow()
	if noRecentSuccess || snapshot.ConsecutiveFailures >= cfg.DownConsecutiveFailures {
		return model.HealthDown
	}
	if snapshot.ConsecutiveFailures > 0 || snapshot.ErrorRatePercent > cfg.DegradedErrorRatePercent {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}

// GetCurrentHealth returns the latest snapshot for an integration,
// cache-first.
func (s *Syncwatch) GetCurrentHealth(ctx context.Context, integration string) (*model.IntegrationHealthSnapshot, error) {
	integration = model.NormalizeKey(integration)
	if s.cache != nil {
		var cached model.IntegrationHealthSnapshot
		if err := s.cache.Get(ctx, healthCacheKey(integration), &cached); err == nil && cached.SnapshotID != "" {
			return &cached, nil
		}
	}

	snapshot, err := s.datasource.GetLatestHealthSnapshot(ctx, integration)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snapshot, nil
}

// GetHealthHistory returns the snapshot time series for trend charts, newest
// first.
func (s *Syncwatch) GetHealthHistory(ctx context.Context, integration string, from, to time.Time, limit int) ([]*model.IntegrationHealthSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	if to.IsZero() {
		to = s.now()
	}
	return s.datasource.GetHealthSnapshots(ctx, model.NormalizeKey(integration), from, to, limit)
}
