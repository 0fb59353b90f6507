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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/database/mocks"
	"github.com/syncwatch/syncwatch/model"
)

func TestResolveDiscrepancy(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	pending := &model.Discrepancy{
		DiscrepancyID: "disc_42",
		Status:        model.DiscrepancyPending,
		Notes:         "flagged by nightly run",
	}
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(pending, nil)
	mockDS.On("TransitionDiscrepancy", mock.Anything, "disc_42", model.DiscrepancyResolved, "ana", "fixed upstream", testInstant).
		Return(true, nil)

	resolved, err := s.ResolveDiscrepancy(context.Background(), "disc_42", "ana", "fixed upstream")
	assert.NoError(t, err)
	assert.Equal(t, model.DiscrepancyResolved, resolved.Status)
	assert.Equal(t, "ana", resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, testInstant, *resolved.ResolvedAt)
	assert.Equal(t, "flagged by nightly run\nfixed upstream", resolved.Notes)
	mockDS.AssertExpectations(t)
}

func TestResolveDiscrepancy_NotFound(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	mockDS.On("GetDiscrepancy", mock.Anything, "disc_missing").Return(nil, database.ErrNotFound)

	_, err := s.ResolveDiscrepancy(context.Background(), "disc_missing", "ana", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveDiscrepancy_RetryIsNoOp(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	settled := &model.Discrepancy{
		DiscrepancyID: "disc_42",
		Status:        model.DiscrepancyResolved,
		ResolvedBy:    "ana",
	}
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(settled, nil)

	got, err := s.ResolveDiscrepancy(context.Background(), "disc_42", "ana", "")
	assert.NoError(t, err)
	assert.Equal(t, settled, got)
	mockDS.AssertNotCalled(t, "TransitionDiscrepancy")
}

func TestResolveDiscrepancy_AlreadyResolvedByOther(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	settled := &model.Discrepancy{
		DiscrepancyID: "disc_42",
		Status:        model.DiscrepancyResolved,
		ResolvedBy:    "bruno",
	}
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(settled, nil)

	got, err := s.ResolveDiscrepancy(context.Background(), "disc_42", "ana", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, settled, got)
}

func TestIgnoreDiscrepancy_ConflictsWithResolved(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	settled := &model.Discrepancy{
		DiscrepancyID: "disc_42",
		Status:        model.DiscrepancyResolved,
		ResolvedBy:    "bruno",
	}
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(settled, nil)

	got, err := s.IgnoreDiscrepancy(context.Background(), "disc_42", "ana", "noise")
	assert.ErrorIs(t, err, ErrConflictingResolution)
	assert.Equal(t, settled, got)
}

func TestResolveDiscrepancy_LostRace(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	pending := &model.Discrepancy{DiscrepancyID: "disc_42", Status: model.DiscrepancyPending}
	settledByOther := &model.Discrepancy{
		DiscrepancyID: "disc_42",
		Status:        model.DiscrepancyIgnored,
		ResolvedBy:    "bruno",
	}
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(pending, nil).Once()
	mockDS.On("TransitionDiscrepancy", mock.Anything, "disc_42", model.DiscrepancyResolved, "ana", "", testInstant).
		Return(false, nil)
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(settledByOther, nil).Once()

	got, err := s.ResolveDiscrepancy(context.Background(), "disc_42", "ana", "")
	assert.ErrorIs(t, err, ErrConflictingResolution)
	assert.Equal(t, model.DiscrepancyIgnored, got.Status)
	mockDS.AssertExpectations(t)
}

func TestAppendDiscrepancyNotes(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	updated := &model.Discrepancy{DiscrepancyID: "disc_42", Notes: "first\nsecond"}
	mockDS.On("AppendDiscrepancyNotes", mock.Anything, "disc_42", "second").Return(nil)
	mockDS.On("GetDiscrepancy", mock.Anything, "disc_42").Return(updated, nil)

	got, err := s.AppendDiscrepancyNotes(context.Background(), "disc_42", "second")
	assert.NoError(t, err)
	assert.Equal(t, "first\nsecond", got.Notes)
	mockDS.AssertExpectations(t)
}

func TestAppendDiscrepancyNotes_NotFound(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	mockDS.On("AppendDiscrepancyNotes", mock.Anything, "disc_missing", "note").Return(database.ErrNotFound)

	_, err := s.AppendDiscrepancyNotes(context.Background(), "disc_missing", "note")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDiscrepancies_DefaultLimit(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	s := newTestSyncwatch(mockDS)

	mockDS.On("GetDiscrepancies", mock.Anything, mock.MatchedBy(func(f database.DiscrepancyFilter) bool {
		return f.Limit == 50
	})).Return([]*model.Discrepancy{}, nil)

	_, err := s.ListDiscrepancies(context.Background(), database.DiscrepancyFilter{})
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
