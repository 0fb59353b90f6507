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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncwatch/syncwatch"
	model2 "github.com/syncwatch/syncwatch/api/model"
)

// CompareBatch runs the field comparator over a batch of entity pairs. When
// a run id is supplied, detected discrepancies are recorded against it;
// otherwise the comparison is a dry run and the result is only returned.
func (a Api) CompareBatch(c *gin.Context) {
	var body model2.CompareBatch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateCompareBatch(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	pairs := make([]syncwatch.EntityPair, 0, len(body.Pairs))
	for _, pair := range body.Pairs {
		pairs = append(pairs, syncwatch.EntityPair{
			EntityType:   pair.EntityType,
			SourceSystem: pair.SourceSystem,
			TargetSystem: pair.TargetSystem,
			SourceID:     pair.SourceID,
			TargetID:     pair.TargetID,
			EntityName:   pair.EntityName,
			Source:       pair.Source,
			Target:       pair.Target,
		})
	}

	result := a.syncwatch.CompareEntityBatch(c.Request.Context(), pairs)

	if body.RunID != "" && len(result.Discrepancies) > 0 {
		if err := a.syncwatch.RecordDiscrepancies(c.Request.Context(), body.RunID, result.Discrepancies); err != nil {
			apiError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"discrepancies":  result.Discrepancies,
		"records_failed": result.RecordsFailed,
	})
}
