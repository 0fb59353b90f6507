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

// HealthStatus is the closed set of per-integration health verdicts.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// ParseHealthStatus validates a free-text health value at the boundary.
func ParseHealthStatus(raw string) (HealthStatus, error) {
	switch HealthStatus(NormalizeKey(raw)) {
	case HealthHealthy:
		return HealthHealthy, nil
	case HealthDegraded:
		return HealthDegraded, nil
	case HealthDown:
		return HealthDown, nil
	}
	return "", fmt.Errorf("invalid health status: %q", raw)
}

// IntegrationHealthSnapshot is a point-in-time rollup for one integration.
// Snapshots form an append-only time series; a row is never mutated once
// written.
type IntegrationHealthSnapshot struct {
	ID                  int64        `json:"-"`
	SnapshotID          string       `json:"snapshot_id"`
	Integration         string       `json:"integration"`
	CreatedAt           time.Time    `json:"created_at"`
	Status              HealthStatus `json:"status"`
	LastSuccessfulSync  *time.Time   `json:"last_successful_sync,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	AvgSyncDurationMs   int64        `json:"avg_sync_duration_ms"`
	TotalRecordsToday   int          `json:"total_records_today"`
	ErrorRatePercent    float64      `json:"error_rate_percent"`
}
