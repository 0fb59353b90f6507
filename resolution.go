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

	"github.com/sirupsen/logrus"

	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/model"
)

// ResolveDiscrepancy marks a pending discrepancy resolved. The transition is
// one-way; retrying the identical transition is a no-op.
func (s *Syncwatch) ResolveDiscrepancy(ctx context.Context, discrepancyID, resolvedBy, notes string) (*model.Discrepancy, error) {
	return s.transitionDiscrepancy(ctx, discrepancyID, model.DiscrepancyResolved, resolvedBy, notes)
}

// IgnoreDiscrepancy marks a pending discrepancy ignored, with the same
// one-way semantics as ResolveDiscrepancy.
func (s *Syncwatch) IgnoreDiscrepancy(ctx context.Context, discrepancyID, resolvedBy, notes string) (*model.Discrepancy, error) {
	return s.transitionDiscrepancy(ctx, discrepancyID, model.DiscrepancyIgnored, resolvedBy, notes)
}

// AppendDiscrepancyNotes appends operator notes. Notes are the only field a
// terminal discrepancy may still change.
func (s *Syncwatch) AppendDiscrepancyNotes(ctx context.Context, discrepancyID, notes string) (*model.Discrepancy, error) {
	if err := s.datasource.AppendDiscrepancyNotes(ctx, discrepancyID, notes); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetDiscrepancy(ctx, discrepancyID)
}

// GetDiscrepancy fetches one discrepancy by id.
func (s *Syncwatch) GetDiscrepancy(ctx context.Context, discrepancyID string) (*model.Discrepancy, error) {
	d, err := s.datasource.GetDiscrepancy(ctx, discrepancyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListDiscrepancies returns discrepancies filtered by any combination of
// status, severity, entity type and system key, newest first. Critical and
// high rows are reachable here without knowing their originating run.
func (s *Syncwatch) ListDiscrepancies(ctx context.Context, filter database.DiscrepancyFilter) ([]*model.Discrepancy, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.datasource.GetDiscrepancies(ctx, filter)
}

// transitionDiscrepancy drives the pending -> {resolved, ignored} state
// machine with optimistic concurrency. The datasource update is a
// compare-and-swap on status=pending, so of two simultaneous operators
// exactly one wins; the loser is told what happened instead.
func (s *Syncwatch) transitionDiscrepancy(ctx context.Context, discrepancyID string, target model.DiscrepancyStatus, resolvedBy, notes string) (*model.Discrepancy, error) {
	current, err := s.datasource.GetDiscrepancy(ctx, discrepancyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if current.Status.Terminal() {
		return s.settleTerminal(current, target, resolvedBy)
	}

	resolvedAt := s.now()
	swapped, err := s.datasource.TransitionDiscrepancy(ctx, discrepancyID, target, resolvedBy, notes, resolvedAt)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost the race: someone else moved the row out of pending between
		// our read and our write.
		current, err = s.datasource.GetDiscrepancy(ctx, discrepancyID)
		if err != nil {
			return nil, err
		}
		return s.settleTerminal(current, target, resolvedBy)
	}

	logrus.WithFields(logrus.Fields{
		"discrepancy_id": discrepancyID,
		"status":         target,
		"resolved_by":    resolvedBy,
	}).Info("discrepancy resolved")

	current.Status = target
	current.ResolvedAt = &resolvedAt
	current.ResolvedBy = resolvedBy
	current.Notes = appendNotes(current.Notes, notes)
	return current, nil
}

// settleTerminal decides what a caller gets when the discrepancy is already
// terminal: a retried identical transition is a quiet no-op, the same outcome
// claimed by someone else is AlreadyResolved, and anything else is a
// conflicting transition.
func (s *Syncwatch) settleTerminal(current *model.Discrepancy, target model.DiscrepancyStatus, resolvedBy string) (*model.Discrepancy, error) {
	if current.Status == target && current.ResolvedBy == resolvedBy {
		return current, nil
	}
	if current.Status == target {
		return current, ErrAlreadyResolved
	}
	return current, ErrConflictingResolution
}

func appendNotes(existing, notes string) string {
	if notes == "" {
		return existing
	}
	if existing == "" {
		return notes
	}
	return existing + "\n" + notes
}
