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
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/model"
)

// deltaEpsilon guards the delta-percent denominator when the source value is
// zero.
const deltaEpsilon = 1e-9

// dateLayouts are the accepted wire formats for date fields, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

// ComparisonResult is the outcome of comparing one field between a source
// value and its mirrored counterpart.
type ComparisonResult struct {
	Equal   bool
	Missing bool
	// DeltaPercent is set for unequal numeric and monetary fields:
	// |source-target| / max(|source|, epsilon) * 100.
	DeltaPercent *float64
}

// Comparator applies type-aware tolerance rules to individual field values.
// It is pure: the same inputs always produce the same result.
type Comparator struct {
	centTolerance     decimal.Decimal
	relativeTolerance decimal.Decimal
	location          *time.Location
}

// NewComparator builds a comparator from the configured tolerances and
// reference timezone.
func NewComparator(cfg config.ReconciliationConfig) (*Comparator, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reconciliation timezone %q: %w", cfg.Timezone, err)
	}
	return &Comparator{
		centTolerance:     decimal.NewFromFloat(cfg.CentTolerance),
		relativeTolerance: decimal.NewFromFloat(cfg.RelativeTolerance),
		location:          loc,
	}, nil
}

// Compare compares one field. A nil value is structurally absent, which is
// distinct from an empty string; absence on either side short-circuits to a
// missing result before any type rule runs.
func (c *Comparator) Compare(spec model.FieldSpec, sourceValue, targetValue *string) (ComparisonResult, error) {
	if sourceValue == nil || targetValue == nil {
		return ComparisonResult{Missing: true}, nil
	}

	switch spec.Type {
	case model.FieldString:
		return c.compareString(spec, *sourceValue, *targetValue), nil
	case model.FieldNumeric, model.FieldMonetary:
		return c.compareDecimal(*sourceValue, *targetValue)
	case model.FieldDate:
		return c.compareDate(*sourceValue, *targetValue)
	case model.FieldEnum:
		return ComparisonResult{Equal: strings.EqualFold(strings.TrimSpace(*sourceValue), strings.TrimSpace(*targetValue))}, nil
	}
	return ComparisonResult{}, fmt.Errorf("unsupported field type %q for field %q", spec.Type, spec.Name)
}

// compareString trims and case-folds both sides. When the field spec allows
// drift, near matches within the Levenshtein distance allowance still count as
// equal, mirroring how operators read slightly rekeyed names.
func (c *Comparator) compareString(spec model.FieldSpec, sourceValue, targetValue string) ComparisonResult {
	source := strings.ToLower(strings.TrimSpace(sourceValue))
	target := strings.ToLower(strings.TrimSpace(targetValue))
	if source == target {
		return ComparisonResult{Equal: true}
	}
	if spec.AllowableDrift > 0 {
		distance := levenshtein.DistanceForStrings([]rune(source), []rune(target), levenshtein.DefaultOptions)
		maxLength := len(source)
		if len(target) > maxLength {
			maxLength = len(target)
		}
		maxAllowedDistance := int(float64(maxLength) * (spec.AllowableDrift / 100))
		if distance <= maxAllowedDistance {
			return ComparisonResult{Equal: true}
		}
	}
	return ComparisonResult{}
}

// compareDecimal applies the monetary tolerance: values are equal when the
// absolute difference is within max(cent tolerance, relative tolerance of the
// source magnitude). Monetary values arrive as decimal strings, never floats,
// so the math is exact.
func (c *Comparator) compareDecimal(sourceValue, targetValue string) (ComparisonResult, error) {
	source, err := decimal.NewFromString(strings.TrimSpace(sourceValue))
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("malformed numeric value %q: %w", sourceValue, err)
	}
	target, err := decimal.NewFromString(strings.TrimSpace(targetValue))
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("malformed numeric value %q: %w", targetValue, err)
	}

	diff := source.Sub(target).Abs()
	tolerance := c.relativeTolerance.Mul(source.Abs())
	if tolerance.LessThan(c.centTolerance) {
		tolerance = c.centTolerance
	}
	if diff.LessThanOrEqual(tolerance) {
		return ComparisonResult{Equal: true}, nil
	}

	denominator, _ := source.Abs().Float64()
	if denominator < deltaEpsilon {
		denominator = deltaEpsilon
	}
	diffFloat, _ := diff.Float64()
	delta := diffFloat / denominator * 100
	return ComparisonResult{DeltaPercent: &delta}, nil
}

// compareDate treats two values as equal when they fall on the same calendar
// day in the reference timezone.
func (c *Comparator) compareDate(sourceValue, targetValue string) (ComparisonResult, error) {
	source, err := c.parseDate(sourceValue)
	if err != nil {
		return ComparisonResult{}, err
	}
	target, err := c.parseDate(targetValue)
	if err != nil {
		return ComparisonResult{}, err
	}
	sy, sm, sd := source.In(c.location).Date()
	ty, tm, td := target.In(c.location).Date()
	return ComparisonResult{Equal: sy == ty && sm == tm && sd == td}, nil
}

func (c *Comparator) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, c.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed date value %q", value)
}
