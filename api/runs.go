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
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncwatch/syncwatch"
	model2 "github.com/syncwatch/syncwatch/api/model"
)

func (a Api) StartRun(c *gin.Context) {
	var newRun model2.StartRun
	if err := c.ShouldBindJSON(&newRun); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newRun.ValidateStartRun(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.syncwatch.StartRun(c.Request.Context(), newRun.Integration, newRun.ParsedOperation(), newRun.TriggeredBy)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) CompleteRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var body model2.CompleteRun
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateCompleteRun(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.syncwatch.CompleteRun(c.Request.Context(), id, body.ParsedStatus(), body.Counts(), body.ErrorMessage, body.ErrorDetails)
	if err != nil {
		// A repeated completion returns the settled run alongside the
		// conflict so retrying clients can see the recorded outcome.
		if errors.Is(err, syncwatch.ErrAlreadyCompleted) && resp != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run": resp})
			return
		}
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) CancelRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var body model2.CancelRun
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := body.ValidateCancelRun(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.syncwatch.CancelRun(c.Request.Context(), id, body.Reason, body.CancelledBy)
	if err != nil {
		if errors.Is(err, syncwatch.ErrAlreadyCompleted) && resp != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run": resp})
			return
		}
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.syncwatch.GetRun(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ListRuns(c *gin.Context) {
	integration := c.Query("integration")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.syncwatch.ListRuns(c.Request.Context(), integration, from, to, limit)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": resp})
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be RFC3339 formatted")
	}
	return parsed, nil
}
