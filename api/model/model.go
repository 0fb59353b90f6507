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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/syncwatch/syncwatch/model"
)

// StartRun is the request body for opening a new sync run.
type StartRun struct {
	Integration string `json:"integration"`
	Operation   string `json:"operation"`
	TriggeredBy string `json:"triggered_by"`
}

func (r *StartRun) ValidateStartRun() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Integration, validation.Required),
		validation.Field(&r.Operation, validation.Required, validation.By(func(value interface{}) error {
			_, err := model.ParseOperationKind(r.Operation)
			return err
		})),
	)
}

// ParsedOperation returns the validated operation kind. Call after
// ValidateStartRun.
func (r *StartRun) ParsedOperation() model.OperationKind {
	op, _ := model.ParseOperationKind(r.Operation)
	return op
}

// CompleteRun is the request body for closing a run with its outcome.
type CompleteRun struct {
	Status           string `json:"status"`
	RecordsProcessed int    `json:"records_processed"`
	RecordsCreated   int    `json:"records_created"`
	RecordsUpdated   int    `json:"records_updated"`
	RecordsFailed    int    `json:"records_failed"`
	ErrorMessage     string `json:"error_message"`
	ErrorDetails     string `json:"error_details"`
}

func (r *CompleteRun) ValidateCompleteRun() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.By(func(value interface{}) error {
			status, err := model.ParseRunStatus(r.Status)
			if err != nil {
				return err
			}
			if !status.Terminal() {
				return errors.New("status must be success, failed or partial")
			}
			return nil
		})),
		validation.Field(&r.RecordsProcessed, validation.Min(0)),
		validation.Field(&r.RecordsCreated, validation.Min(0)),
		validation.Field(&r.RecordsUpdated, validation.Min(0)),
		validation.Field(&r.RecordsFailed, validation.Min(0)),
	)
}

// ParsedStatus returns the validated terminal status. Call after
// ValidateCompleteRun.
func (r *CompleteRun) ParsedStatus() model.RunStatus {
	status, _ := model.ParseRunStatus(r.Status)
	return status
}

// Counts bundles the reported counters into the engine's type.
func (r *CompleteRun) Counts() model.RunCounts {
	return model.RunCounts{
		Processed: r.RecordsProcessed,
		Created:   r.RecordsCreated,
		Updated:   r.RecordsUpdated,
		Failed:    r.RecordsFailed,
	}
}

// CancelRun is the request body for cancelling a running run.
type CancelRun struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

func (r *CancelRun) ValidateCancelRun() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CancelledBy, validation.Required),
	)
}

// ComparePair is one source/target entity pair submitted for comparison. A
// nil record means the entity is absent from that side entirely.
type ComparePair struct {
	EntityType   string            `json:"entity_type"`
	SourceSystem string            `json:"source_system"`
	TargetSystem string            `json:"target_system"`
	SourceID     string            `json:"source_id"`
	TargetID     string            `json:"target_id"`
	EntityName   string            `json:"entity_name"`
	Source       map[string]string `json:"source"`
	Target       map[string]string `json:"target"`
}

// CompareBatch is the request body for comparing a batch of entity pairs.
// When RunID is set the detected discrepancies are recorded against that run.
type CompareBatch struct {
	RunID string        `json:"run_id"`
	Pairs []ComparePair `json:"pairs"`
}

func (r *CompareBatch) ValidateCompareBatch() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Pairs, validation.Required, validation.Length(1, 0)),
	)
}

// RecordDiscrepancy is one externally detected discrepancy submitted for
// recording.
type RecordDiscrepancy struct {
	EntityType      string   `json:"entity_type"`
	SourceSystem    string   `json:"source_system"`
	TargetSystem    string   `json:"target_system"`
	DiscrepancyType string   `json:"discrepancy_type"`
	SourceID        string   `json:"source_id"`
	TargetID        string   `json:"target_id"`
	EntityName      string   `json:"entity_name"`
	FieldName       *string  `json:"field_name"`
	SourceValue     *string  `json:"source_value"`
	TargetValue     *string  `json:"target_value"`
	DeltaPercent    *float64 `json:"delta_percent"`
	Severity        string   `json:"severity"`
}

func (r *RecordDiscrepancy) ValidateRecordDiscrepancy() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EntityType, validation.Required),
		validation.Field(&r.SourceSystem, validation.Required),
		validation.Field(&r.TargetSystem, validation.Required),
		validation.Field(&r.DiscrepancyType, validation.Required, validation.By(func(value interface{}) error {
			_, err := model.ParseDiscrepancyType(r.DiscrepancyType)
			return err
		})),
		validation.Field(&r.Severity, validation.Required, validation.By(func(value interface{}) error {
			_, err := model.ParseSeverity(r.Severity)
			return err
		})),
	)
}

// RecordDiscrepancies is the request body for recording a batch of
// externally detected discrepancies against a run.
type RecordDiscrepancies struct {
	RunID         string              `json:"run_id"`
	Discrepancies []RecordDiscrepancy `json:"discrepancies"`
}

func (r *RecordDiscrepancies) ValidateRecordDiscrepancies() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Discrepancies, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return err
	}
	for _, disc := range r.Discrepancies {
		if err := disc.ValidateRecordDiscrepancy(); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDiscrepancy is the request body for resolving or ignoring a
// discrepancy.
type ResolveDiscrepancy struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

func (r *ResolveDiscrepancy) ValidateResolveDiscrepancy() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ResolvedBy, validation.Required),
	)
}

// AppendNotes is the request body for adding operator notes without touching
// the discrepancy status.
type AppendNotes struct {
	Notes string `json:"notes"`
}

func (r *AppendNotes) ValidateAppendNotes() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Notes, validation.Required),
	)
}
