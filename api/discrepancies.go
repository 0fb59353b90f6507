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
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/syncwatch/syncwatch/api/model"
	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/model"
)

// RecordDiscrepancies accepts a batch of externally detected discrepancies
// and records them against a run.
func (a Api) RecordDiscrepancies(c *gin.Context) {
	var body model2.RecordDiscrepancies
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateRecordDiscrepancies(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	discrepancies := make([]model.Discrepancy, 0, len(body.Discrepancies))
	for _, disc := range body.Discrepancies {
		discrepancyType, _ := model.ParseDiscrepancyType(disc.DiscrepancyType)
		severity, _ := model.ParseSeverity(disc.Severity)
		discrepancies = append(discrepancies, model.Discrepancy{
			EntityType:      disc.EntityType,
			SourceSystem:    disc.SourceSystem,
			TargetSystem:    disc.TargetSystem,
			DiscrepancyType: discrepancyType,
			SourceID:        disc.SourceID,
			TargetID:        disc.TargetID,
			EntityName:      disc.EntityName,
			FieldName:       disc.FieldName,
			SourceValue:     disc.SourceValue,
			TargetValue:     disc.TargetValue,
			DeltaPercent:    disc.DeltaPercent,
			Severity:        severity,
		})
	}

	if err := a.syncwatch.RecordExternalDiscrepancies(c.Request.Context(), body.RunID, discrepancies); err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recorded": len(discrepancies)})
}

func (a Api) GetDiscrepancy(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.syncwatch.GetDiscrepancy(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ListDiscrepancies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := database.DiscrepancyFilter{
		RunID:      c.Query("run_id"),
		EntityType: c.Query("entity_type"),
		System:     c.Query("system"),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := c.Query("type"); raw != "" {
		parsed, err := model.ParseDiscrepancyType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Type = parsed
	}
	if raw := c.Query("severity"); raw != "" {
		parsed, err := model.ParseSeverity(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Severity = parsed
	}
	if raw := c.Query("status"); raw != "" {
		parsed, err := model.ParseDiscrepancyStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = parsed
	}

	resp, err := a.syncwatch.ListDiscrepancies(c.Request.Context(), filter)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"discrepancies": resp})
}

func (a Api) ResolveDiscrepancy(c *gin.Context) {
	a.transitionDiscrepancy(c, model.DiscrepancyResolved)
}

func (a Api) IgnoreDiscrepancy(c *gin.Context) {
	a.transitionDiscrepancy(c, model.DiscrepancyIgnored)
}

func (a Api) transitionDiscrepancy(c *gin.Context, target model.DiscrepancyStatus) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var body model2.ResolveDiscrepancy
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateResolveDiscrepancy(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	var resp *model.Discrepancy
	var err error
	if target == model.DiscrepancyResolved {
		resp, err = a.syncwatch.ResolveDiscrepancy(c.Request.Context(), id, body.ResolvedBy, body.Notes)
	} else {
		resp, err = a.syncwatch.IgnoreDiscrepancy(c.Request.Context(), id, body.ResolvedBy, body.Notes)
	}
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) AppendDiscrepancyNotes(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var body model2.AppendNotes
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateAppendNotes(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.syncwatch.AppendDiscrepancyNotes(c.Request.Context(), id, body.Notes)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
