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

import "errors"

// Caller errors. All of them are surfaced synchronously and none of them
// leave persisted state behind; retry policy belongs to the caller.
var (
	// ErrIntegrationBusy is returned by StartRun when a run for the same
	// integration is still running. The caller retries after that run
	// completes; runs for one integration are never queued or merged.
	ErrIntegrationBusy = errors.New("integration already has a running sync run")

	// ErrUnknownRun is returned when a run id does not exist.
	ErrUnknownRun = errors.New("sync run not found")

	// ErrAlreadyCompleted is returned when completing a run that is already
	// terminal. The first completion wins; this is a warning-level no-op,
	// not a crash.
	ErrAlreadyCompleted = errors.New("sync run already completed")

	// ErrInvalidCounts is returned when reported counters would violate
	// records_processed >= created + updated + failed.
	ErrInvalidCounts = errors.New("invalid run counts")

	// ErrNotFound is returned when a discrepancy id does not exist.
	ErrNotFound = errors.New("discrepancy not found")

	// ErrAlreadyResolved is returned for a transition to the outcome the
	// discrepancy already has, requested by a different operator.
	ErrAlreadyResolved = errors.New("discrepancy already resolved")

	// ErrConflictingResolution is returned when a transition conflicts with
	// the one that already won, including the losing side of a concurrent
	// resolve/ignore race.
	ErrConflictingResolution = errors.New("conflicting resolution attempt")
)
