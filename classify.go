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
	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/model"
)

// financialEntities are the entity types whose absence has direct financial
// impact: a vanished row here means money is unaccounted for.
var financialEntities = map[string]bool{
	"contract": true,
	"invoice":  true,
}

// Classifier maps a discrepancy to a severity. Classification is pure and
// deterministic: it is computed once at detection time and stored, and
// re-running it on the same inputs always yields the same severity.
type Classifier struct {
	bands config.SeverityBands
}

func NewClassifier(bands config.SeverityBands) *Classifier {
	return &Classifier{bands: bands}
}

// Classify derives the severity of a discrepancy.
//
// Monetary mismatch bands are closed on the right: a delta of exactly
// LowMaxPercent is still low, exactly MediumMaxPercent is still medium, and
// exactly HighMaxPercent is still high. The boundary convention is covered by
// an explicit test.
func (c *Classifier) Classify(entityType string, discrepancyType model.DiscrepancyType, field *model.FieldSpec, deltaPercent *float64) model.Severity {
	switch discrepancyType {
	case model.DiscrepancyMissing:
		if financialEntities[model.NormalizeKey(entityType)] {
			return model.SeverityCritical
		}
		return model.SeverityHigh
	case model.DiscrepancyStatusMismatch:
		// Status drives downstream business logic such as churn and billing.
		return model.SeverityHigh
	case model.DiscrepancyValueMismatch:
		if field == nil || field.Type != model.FieldMonetary || deltaPercent == nil {
			return model.SeverityLow
		}
		return c.monetarySeverity(*deltaPercent)
	}
	return model.SeverityLow
}

func (c *Classifier) monetarySeverity(deltaPercent float64) model.Severity {
	switch {
	case deltaPercent <= c.bands.LowMaxPercent:
		return model.SeverityLow
	case deltaPercent <= c.bands.MediumMaxPercent:
		return model.SeverityMedium
	case deltaPercent <= c.bands.HighMaxPercent:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}
