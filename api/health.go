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

	"github.com/syncwatch/syncwatch/config"
)

// ListIntegrations returns the configured integration enumeration.
func (a Api) ListIntegrations(c *gin.Context) {
	conf, err := config.Fetch()
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": conf.Integrations})
}

func (a Api) GetIntegrationHealth(c *gin.Context) {
	key, passed := c.Params.Get("key")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required. pass key in the route /:key"})
		return
	}

	resp, err := a.syncwatch.GetCurrentHealth(c.Request.Context(), key)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetIntegrationHealthHistory(c *gin.Context) {
	key, passed := c.Params.Get("key")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required. pass key in the route /:key"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
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

	resp, err := a.syncwatch.GetHealthHistory(c.Request.Context(), key, from, to, limit)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": resp})
}

// TriggerAggregation computes a fresh snapshot on demand instead of waiting
// for the next scheduler tick.
func (a Api) TriggerAggregation(c *gin.Context) {
	key, passed := c.Params.Get("key")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required. pass key in the route /:key"})
		return
	}

	snapshot, err := a.syncwatch.AggregateIntegration(c.Request.Context(), key)
	if err != nil {
		apiError(c, err)
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusAccepted, gin.H{"message": "aggregation skipped: no runs or already in progress"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
