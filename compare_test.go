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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/model"
)

func newTestComparator(t *testing.T) *Comparator {
	t.Helper()
	c, err := NewComparator(config.ReconciliationConfig{
		CentTolerance:     0.01,
		RelativeTolerance: 0.001,
		Timezone:          "America/Sao_Paulo",
	})
	assert.NoError(t, err)
	return c
}

func TestNewComparator_InvalidTimezone(t *testing.T) {
	_, err := NewComparator(config.ReconciliationConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestCompare_MissingValue(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "name", Type: model.FieldString}

	result, err := c.Compare(spec, nil, ptr.String("Acme"))
	assert.NoError(t, err)
	assert.True(t, result.Missing)
	assert.False(t, result.Equal)
}

func TestCompare_StringNormalization(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "name", Type: model.FieldString}

	result, err := c.Compare(spec, ptr.String("  Acme Corp "), ptr.String("acme corp"))
	assert.NoError(t, err)
	assert.True(t, result.Equal)

	result, err = c.Compare(spec, ptr.String("Acme Corp"), ptr.String("Acme Corporation"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
}

func TestCompare_StringDrift(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "name", Type: model.FieldString, AllowableDrift: 20}

	// One edit across ten characters is within a 20% drift allowance.
	result, err := c.Compare(spec, ptr.String("acme corpo"), ptr.String("acme corpa"))
	assert.NoError(t, err)
	assert.True(t, result.Equal)

	// Completely different names never pass on drift alone.
	result, err = c.Compare(spec, ptr.String("acme"), ptr.String("globex"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
}

func TestCompare_MonetaryWithinTolerance(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "total_amount", Type: model.FieldMonetary}

	// Within the cent tolerance.
	result, err := c.Compare(spec, ptr.String("100.00"), ptr.String("100.01"))
	assert.NoError(t, err)
	assert.True(t, result.Equal)

	// Within the relative tolerance: 0.1% of 10000 covers a 5.00 difference.
	result, err = c.Compare(spec, ptr.String("10000.00"), ptr.String("10005.00"))
	assert.NoError(t, err)
	assert.True(t, result.Equal)
}

func TestCompare_MonetaryDeltaPercent(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "total_amount", Type: model.FieldMonetary}

	result, err := c.Compare(spec, ptr.String("100.00"), ptr.String("110.00"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
	assert.NotNil(t, result.DeltaPercent)
	assert.InDelta(t, 10.0, *result.DeltaPercent, 0.0001)
}

func TestCompare_MonetaryZeroSource(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "amount", Type: model.FieldMonetary}

	result, err := c.Compare(spec, ptr.String("0.00"), ptr.String("5.00"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
	// The epsilon guard keeps the delta finite.
	assert.NotNil(t, result.DeltaPercent)
}

func TestCompare_MalformedNumber(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "amount", Type: model.FieldMonetary}

	_, err := c.Compare(spec, ptr.String("not-a-number"), ptr.String("5.00"))
	assert.Error(t, err)
}

func TestCompare_DateSameCalendarDay(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "issue_date", Type: model.FieldDate}

	// Both instants fall on 2024-03-15 in Sao Paulo (UTC-3).
	result, err := c.Compare(spec, ptr.String("2024-03-15T10:00:00Z"), ptr.String("2024-03-15"))
	assert.NoError(t, err)
	assert.True(t, result.Equal)

	// 2024-03-15T01:00:00Z is still 2024-03-14 22:00 local.
	result, err = c.Compare(spec, ptr.String("2024-03-15T01:00:00Z"), ptr.String("2024-03-15"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
}

func TestCompare_MalformedDate(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "issue_date", Type: model.FieldDate}

	_, err := c.Compare(spec, ptr.String("15/03/2024"), ptr.String("2024-03-15"))
	assert.Error(t, err)
}

func TestCompare_EnumCaseInsensitive(t *testing.T) {
	c := newTestComparator(t)
	spec := model.FieldSpec{Name: "status", Type: model.FieldEnum}

	result, err := c.Compare(spec, ptr.String("Active"), ptr.String(" ACTIVE "))
	assert.NoError(t, err)
	assert.True(t, result.Equal)

	result, err = c.Compare(spec, ptr.String("active"), ptr.String("churned"))
	assert.NoError(t, err)
	assert.False(t, result.Equal)
}
