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
	"sort"
	"sync"
)

// FieldType drives which comparison rule applies to a field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumeric  FieldType = "numeric"
	FieldMonetary FieldType = "monetary"
	FieldDate     FieldType = "date"
	FieldEnum     FieldType = "enum"
)

// FieldSpec describes one comparable field of an entity type.
// AllowableDrift applies to string fields only: when > 0, values within that
// Levenshtein distance percentage still count as equal.
type FieldSpec struct {
	Name           string    `json:"name"`
	Type           FieldType `json:"type"`
	AllowableDrift float64   `json:"allowable_drift,omitempty"`
}

// Record is one entity as fetched from a source or mirrored system. A key
// that is absent from the map is structurally absent, which is distinct from
// a key mapped to an empty string.
type Record map[string]string

// FieldSpecRegistry maps entity types to their registered field specs.
// Registration is a deployment-time event, exactly like integrations.
type FieldSpecRegistry struct {
	mu    sync.RWMutex
	specs map[string][]FieldSpec
}

// NewFieldSpecRegistry returns a registry preloaded with the entity types the
// warehouse mirrors today. Callers may register more at startup.
func NewFieldSpecRegistry() *FieldSpecRegistry {
	r := &FieldSpecRegistry{specs: make(map[string][]FieldSpec)}
	r.Register("client", []FieldSpec{
		{Name: "name", Type: FieldString, AllowableDrift: 10},
		{Name: "email", Type: FieldString},
		{Name: "status", Type: FieldEnum},
		{Name: "created_date", Type: FieldDate},
	})
	r.Register("contract", []FieldSpec{
		{Name: "name", Type: FieldString},
		{Name: "status", Type: FieldEnum},
		{Name: "monthly_value", Type: FieldMonetary},
		{Name: "start_date", Type: FieldDate},
		{Name: "end_date", Type: FieldDate},
	})
	r.Register("invoice", []FieldSpec{
		{Name: "number", Type: FieldString},
		{Name: "status", Type: FieldEnum},
		{Name: "total_amount", Type: FieldMonetary},
		{Name: "issue_date", Type: FieldDate},
		{Name: "due_date", Type: FieldDate},
	})
	r.Register("installment", []FieldSpec{
		{Name: "status", Type: FieldEnum},
		{Name: "amount", Type: FieldMonetary},
		{Name: "installment_number", Type: FieldNumeric},
		{Name: "due_date", Type: FieldDate},
	})
	return r
}

// Register replaces the field specs for an entity type.
func (r *FieldSpecRegistry) Register(entityType string, specs []FieldSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[NormalizeKey(entityType)] = specs
}

// Specs returns the field specs registered for an entity type.
func (r *FieldSpecRegistry) Specs(entityType string) ([]FieldSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs, ok := r.specs[NormalizeKey(entityType)]
	if !ok {
		return nil, fmt.Errorf("no field specs registered for entity type %q", entityType)
	}
	return specs, nil
}

// Spec returns the spec for a single field of an entity type, if registered.
func (r *FieldSpecRegistry) Spec(entityType, fieldName string) (FieldSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, spec := range r.specs[NormalizeKey(entityType)] {
		if spec.Name == fieldName {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// EntityTypes lists the registered entity types, sorted for stable output.
func (r *FieldSpecRegistry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.specs))
	for t := range r.specs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
