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

// DiscrepancyType is the closed set of divergence kinds the detector emits.
type DiscrepancyType string

const (
	DiscrepancyMissing        DiscrepancyType = "missing"
	DiscrepancyValueMismatch  DiscrepancyType = "value_mismatch"
	DiscrepancyStatusMismatch DiscrepancyType = "status_mismatch"
)

// Severity ranks the business impact of a discrepancy.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DiscrepancyStatus is the resolution state machine: pending is the only
// non-terminal state.
type DiscrepancyStatus string

const (
	DiscrepancyPending  DiscrepancyStatus = "pending"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
	DiscrepancyIgnored  DiscrepancyStatus = "ignored"
)

// Terminal reports whether the status admits no further transition.
func (s DiscrepancyStatus) Terminal() bool {
	return s == DiscrepancyResolved || s == DiscrepancyIgnored
}

// ParseDiscrepancyType validates a free-text divergence kind at the boundary.
func ParseDiscrepancyType(raw string) (DiscrepancyType, error) {
	switch DiscrepancyType(NormalizeKey(raw)) {
	case DiscrepancyMissing:
		return DiscrepancyMissing, nil
	case DiscrepancyValueMismatch:
		return DiscrepancyValueMismatch, nil
	case DiscrepancyStatusMismatch:
		return DiscrepancyStatusMismatch, nil
	}
	return "", fmt.Errorf("invalid discrepancy type: %q", raw)
}

// ParseSeverity validates a free-text severity value at the boundary.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(NormalizeKey(raw)) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("invalid severity: %q", raw)
}

// ParseDiscrepancyStatus validates a free-text status value at the boundary.
func ParseDiscrepancyStatus(raw string) (DiscrepancyStatus, error) {
	switch DiscrepancyStatus(NormalizeKey(raw)) {
	case DiscrepancyPending:
		return DiscrepancyPending, nil
	case DiscrepancyResolved:
		return DiscrepancyResolved, nil
	case DiscrepancyIgnored:
		return DiscrepancyIgnored, nil
	}
	return "", fmt.Errorf("invalid discrepancy status: %q", raw)
}

// Discrepancy is one detected divergence between a source-system value and
// its mirrored counterpart. Source and target values are carried as
// normalized text; monetary values are decimal strings.
type Discrepancy struct {
	ID              int64             `json:"-"`
	DiscrepancyID   string            `json:"discrepancy_id"`
	RunID           string            `json:"run_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	EntityType      string            `json:"entity_type"`
	SourceSystem    string            `json:"source_system"`
	TargetSystem    string            `json:"target_system"`
	DiscrepancyType DiscrepancyType   `json:"discrepancy_type"`
	SourceID        string            `json:"source_id"`
	TargetID        string            `json:"target_id"`
	EntityName      string            `json:"entity_name,omitempty"`
	FieldName       *string           `json:"field_name,omitempty"`
	SourceValue     *string           `json:"source_value,omitempty"`
	TargetValue     *string           `json:"target_value,omitempty"`
	DeltaPercent    *float64          `json:"delta_percent,omitempty"`
	Severity        Severity          `json:"severity"`
	Status          DiscrepancyStatus `json:"status"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy      string            `json:"resolved_by,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// Pending reports whether the discrepancy still awaits an operator decision.
func (d *Discrepancy) Pending() bool {
	return d.Status == DiscrepancyPending
}
