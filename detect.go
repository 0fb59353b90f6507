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
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/syncwatch/syncwatch/internal/notification"
	"github.com/syncwatch/syncwatch/model"
)

// EntityPair is one source record and its mirrored counterpart as fetched by
// an import job. A nil Record means the entity is absent from that system
// entirely, as opposed to present with empty fields.
type EntityPair struct {
	EntityType   string
	SourceSystem string
	TargetSystem string
	SourceID     string
	TargetID     string
	EntityName   string
	Source       model.Record
	Target       model.Record
}

// BatchResult is what a batch comparison reports back to the calling sync
// run: the discrepancies it found and how many entity pairs it had to skip.
type BatchResult struct {
	Discrepancies []model.Discrepancy
	RecordsFailed int
}

// CompareEntity compares one entity pair field by field and returns the
// resulting discrepancies, classified but not persisted. The import job
// persists them tagged with its run id.
func (s *Syncwatch) CompareEntity(ctx context.Context, pair EntityPair) ([]model.Discrepancy, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	specs, err := s.fieldSpecs.Specs(pair.EntityType)
	if err != nil {
		return nil, err
	}

	if pair.Source == nil && pair.Target == nil {
		return nil, fmt.Errorf("entity pair %s/%s has no records on either side", pair.SourceID, pair.TargetID)
	}

	// A whole entity absent on one side is one discrepancy for the entity,
	// not one per field.
	if pair.Source == nil || pair.Target == nil {
		return []model.Discrepancy{s.newDiscrepancy(pair, model.DiscrepancyMissing, nil, nil, nil, nil)}, nil
	}

	var discrepancies []model.Discrepancy
	for _, spec := range specs {
		spec := spec
		sourceValue := fieldValue(pair.Source, spec.Name)
		targetValue := fieldValue(pair.Target, spec.Name)
		if sourceValue == nil && targetValue == nil {
			// Field absent on both sides: nothing to compare.
			continue
		}

		result, err := s.comparator.Compare(spec, sourceValue, targetValue)
		if err != nil {
			// Malformed upstream value. The whole entity is reported failed;
			// the caller converts this into a recordsFailed increment.
			return nil, fmt.Errorf("entity %s field %s: %w", pair.SourceID, spec.Name, err)
		}
		if result.Equal {
			continue
		}

		discrepancyType := model.DiscrepancyValueMismatch
		if result.Missing {
			discrepancyType = model.DiscrepancyMissing
		} else if spec.Type == model.FieldEnum {
			discrepancyType = model.DiscrepancyStatusMismatch
		}
		discrepancies = append(discrepancies, s.newDiscrepancy(pair, discrepancyType, &spec, sourceValue, targetValue, result.DeltaPercent))
	}

	return discrepancies, nil
}

// CompareEntityBatch fans entity comparisons out across goroutines and
// collects the results over channels. Per-entity failures never abort the
// batch; they surface as a failed-records count for the calling run. No
// ordering is guaranteed between the discrepancies it returns.
func (s *Syncwatch) CompareEntityBatch(ctx context.Context, pairs []EntityPair) BatchResult {
	discChan := make(chan []model.Discrepancy, len(pairs))
	failChan := make(chan string, len(pairs))
	var wg sync.WaitGroup

	for _, pair := range pairs {
		wg.Add(1)
		go func(pair EntityPair) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logrus.WithField("entity_id", pair.SourceID).Errorf("panic comparing entity: %v", rec)
					failChan <- pair.SourceID
				}
			}()
			found, err := s.CompareEntity(ctx, pair)
			if err != nil {
				logrus.WithField("entity_id", pair.SourceID).Warnf("skipping entity pair: %v", err)
				failChan <- pair.SourceID
				return
			}
			if len(found) > 0 {
				discChan <- found
			}
		}(pair)
	}

	go func() {
		wg.Wait()
		close(discChan)
		close(failChan)
	}()

	var result BatchResult
	for found := range discChan {
		result.Discrepancies = append(result.Discrepancies, found...)
	}
	for range failChan {
		result.RecordsFailed++
	}
	return result
}

// RecordDiscrepancies persists detector output tagged with the run that
// produced it. Inserts are independent rows, so batches from parallel entity
// workers interleave safely.
func (s *Syncwatch) RecordDiscrepancies(ctx context.Context, runID string, discrepancies []model.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}
	for i := range discrepancies {
		discrepancies[i].RunID = runID
	}
	if err := s.datasource.RecordDiscrepancies(ctx, discrepancies); err != nil {
		return err
	}
	for _, d := range discrepancies {
		if d.Severity == model.SeverityCritical {
			notification.NotifyCriticalDiscrepancy(d.DiscrepancyID, d.EntityType, d.SourceSystem, d.TargetSystem)
		}
	}
	return nil
}

// RecordExternalDiscrepancies accepts discrepancies detected by an outside
// system, stamps identity and pending status on them, and records them
// against a run.
func (s *Syncwatch) RecordExternalDiscrepancies(ctx context.Context, runID string, discrepancies []model.Discrepancy) error {
	for i := range discrepancies {
		discrepancies[i].DiscrepancyID = s.generateID("disc")
		discrepancies[i].CreatedAt = s.now()
		discrepancies[i].Status = model.DiscrepancyPending
		discrepancies[i].EntityType = model.NormalizeKey(discrepancies[i].EntityType)
		discrepancies[i].SourceSystem = model.NormalizeKey(discrepancies[i].SourceSystem)
		discrepancies[i].TargetSystem = model.NormalizeKey(discrepancies[i].TargetSystem)
	}
	return s.RecordDiscrepancies(ctx, runID, discrepancies)
}

func (s *Syncwatch) newDiscrepancy(pair EntityPair, discrepancyType model.DiscrepancyType, spec *model.FieldSpec, sourceValue, targetValue *string, deltaPercent *float64) model.Discrepancy {
	d := model.Discrepancy{
		DiscrepancyID:   s.generateID("disc"),
		CreatedAt:       s.now(),
		EntityType:      model.NormalizeKey(pair.EntityType),
		SourceSystem:    model.NormalizeKey(pair.SourceSystem),
		TargetSystem:    model.NormalizeKey(pair.TargetSystem),
		DiscrepancyType: discrepancyType,
		SourceID:        pair.SourceID,
		TargetID:        pair.TargetID,
		EntityName:      pair.EntityName,
		SourceValue:     sourceValue,
		TargetValue:     targetValue,
		DeltaPercent:    deltaPercent,
		Status:          model.DiscrepancyPending,
	}
	if spec != nil {
		name := spec.Name
		d.FieldName = &name
	}
	d.Severity = s.classifier.Classify(d.EntityType, discrepancyType, spec, deltaPercent)
	return d
}

func fieldValue(record model.Record, field string) *string {
	value, ok := record[field]
	if !ok {
		return nil
	}
	return &value
}
