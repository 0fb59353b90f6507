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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/syncwatch/syncwatch"
	"github.com/syncwatch/syncwatch/api/middleware"
	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/internal/apierror"
)

type Api struct {
	syncwatch *syncwatch.Syncwatch
	router    *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/runs", a.StartRun)
	router.GET("/runs", a.ListRuns)
	router.GET("/runs/:id", a.GetRun)
	router.POST("/runs/:id/complete", a.CompleteRun)
	router.POST("/runs/:id/cancel", a.CancelRun)

	router.POST("/compare", a.CompareBatch)

	router.POST("/discrepancies", a.RecordDiscrepancies)
	router.GET("/discrepancies", a.ListDiscrepancies)
	router.GET("/discrepancies/:id", a.GetDiscrepancy)
	router.POST("/discrepancies/:id/resolve", a.ResolveDiscrepancy)
	router.POST("/discrepancies/:id/ignore", a.IgnoreDiscrepancy)
	router.POST("/discrepancies/:id/notes", a.AppendDiscrepancyNotes)

	router.GET("/integrations", a.ListIntegrations)
	router.GET("/integrations/:key/health", a.GetIntegrationHealth)
	router.GET("/integrations/:key/health/history", a.GetIntegrationHealthHistory)
	router.POST("/integrations/:key/health/aggregate", a.TriggerAggregation)

	return a.router
}

func NewAPI(s *syncwatch.Syncwatch) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{syncwatch: s, router: r}
}

// apiError translates engine errors into HTTP responses. Unknown errors are
// reported as 500 without leaking internals.
func apiError(c *gin.Context, err error) {
	var code apierror.ErrorCode
	switch {
	case errors.Is(err, syncwatch.ErrUnknownRun), errors.Is(err, syncwatch.ErrNotFound):
		code = apierror.ErrNotFound
	case errors.Is(err, syncwatch.ErrIntegrationBusy),
		errors.Is(err, syncwatch.ErrAlreadyCompleted),
		errors.Is(err, syncwatch.ErrAlreadyResolved),
		errors.Is(err, syncwatch.ErrConflictingResolution):
		code = apierror.ErrConflict
	case errors.Is(err, syncwatch.ErrInvalidCounts):
		code = apierror.ErrInvalidInput
	default:
		apiErr := apierror.APIError{Code: apierror.ErrInternalServer, Message: "internal server error"}
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
		return
	}
	apiErr := apierror.APIError{Code: code, Message: err.Error()}
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
}
