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
package model

import (
	"fmt"
	"time"
)

// OperationKind is the closed set of ways a sync run can be started.
type OperationKind string

const (
	OperationFull        OperationKind = "full"
	OperationIncremental OperationKind = "incremental"
	OperationManual      OperationKind = "manual"
)

// RunStatus is the closed set of sync run states.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusPartial RunStatus = "partial"
)

// Terminal reports whether the status is one a run can never leave.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusPartial
}

// ParseOperationKind validates a free-text operation value at the boundary.
func ParseOperationKind(raw string) (OperationKind, error) {
	switch OperationKind(NormalizeKey(raw)) {
	case OperationFull:
		return OperationFull, nil
	case OperationIncremental:
		return OperationIncremental, nil
	case OperationManual:
		return OperationManual, nil
	}
	return "", fmt.Errorf("invalid operation kind: %q", raw)
}

// ParseRunStatus validates a free-text run status value at the boundary.
func ParseRunStatus(raw string) (RunStatus, error) {
	switch RunStatus(NormalizeKey(raw)) {
	case RunStatusRunning:
		return RunStatusRunning, nil
	case RunStatusSuccess:
		return RunStatusSuccess, nil
	case RunStatusFailed:
		return RunStatusFailed, nil
	case RunStatusPartial:
		return RunStatusPartial, nil
	}
	return "", fmt.Errorf("invalid run status: %q", raw)
}

// RunCounts carries the volume counters reported by an import job when it
// completes a run.
type RunCounts struct {
	Processed int `json:"records_processed"`
	Created   int `json:"records_created"`
	Updated   int `json:"records_updated"`
	Failed    int `json:"records_failed"`
}

// Validate enforces the counter invariant: a detector may skip records, never
// double count them, so processed must cover created+updated+failed.
func (c RunCounts) Validate() error {
	if c.Processed < 0 || c.Created < 0 || c.Updated < 0 || c.Failed < 0 {
		return fmt.Errorf("run counts must be non-negative: %+v", c)
	}
	if sum := c.Created + c.Updated + c.Failed; c.Processed < sum {
		return fmt.Errorf("records_processed (%d) is less than created+updated+failed (%d)", c.Processed, sum)
	}
	return nil
}

// SyncRun is one execution of a synchronization job for one integration.
// A run is created in running state, completed exactly once, and never
// deleted.
type SyncRun struct {
	ID               int64         `json:"-"`
	RunID            string        `json:"run_id"`
	Integration      string        `json:"integration"`
	Operation        OperationKind `json:"operation"`
	Status           RunStatus     `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsCreated   int           `json:"records_created"`
	RecordsUpdated   int           `json:"records_updated"`
	RecordsFailed    int           `json:"records_failed"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	ErrorDetails     string        `json:"error_details,omitempty"`
	TriggeredBy      string        `json:"triggered_by"`
	DurationMs       int64         `json:"duration_ms"`
}

// Running reports whether the run is still open. Status and CompletedAt are
// two views of the same fact and must agree.
func (r *SyncRun) Running() bool {
	return r.Status == RunStatusRunning
}

// Complete transitions the run to a terminal status in place. It does not
// persist anything; the datasource writes the mutated row exactly once.
func (r *SyncRun) Complete(status RunStatus, counts RunCounts, completedAt time.Time, errMessage, errDetails string) error {
	if r.Status.Terminal() {
		return fmt.Errorf("run %s is already %s", r.RunID, r.Status)
	}
	if !status.Terminal() {
		return fmt.Errorf("cannot complete run %s with non-terminal status %q", r.RunID, status)
	}
	if err := counts.Validate(); err != nil {
		return err
	}
	if completedAt.Before(r.StartedAt) {
		return fmt.Errorf("run %s completion time %s precedes start time %s", r.RunID, completedAt, r.StartedAt)
	}
	r.Status = status
	r.CompletedAt = &completedAt
	r.RecordsProcessed = counts.Processed
	r.RecordsCreated = counts.Created
	r.RecordsUpdated = counts.Updated
	r.RecordsFailed = counts.Failed
	r.ErrorMessage = errMessage
	r.ErrorDetails = errDetails
	r.DurationMs = completedAt.Sub(r.StartedAt).Milliseconds()
	return nil
}
