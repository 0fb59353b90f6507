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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/syncwatch/syncwatch/config"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		ProjectName: "Test",
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		DataSource:  config.DataSourceConfig{Dns: "test"},
	})
	cnf, err := config.Fetch()
	assert.NoError(t, err)
	return NewQueue(cnf)
}

func TestEnqueueHealthAggregation(t *testing.T) {
	q := newTestQueue(t)

	err := q.EnqueueHealthAggregation(context.Background(), "salesforce")
	assert.NoError(t, err)

	pending, err := q.PendingHealthAggregations()
	assert.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestEnqueueHealthAggregation_Deduplicates(t *testing.T) {
	q := newTestQueue(t)

	err := q.EnqueueHealthAggregation(context.Background(), "salesforce")
	assert.NoError(t, err)

	// Same integration with a task already pending collapses into it.
	err = q.EnqueueHealthAggregation(context.Background(), "salesforce")
	assert.NoError(t, err)

	pending, err := q.PendingHealthAggregations()
	assert.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestEnqueueNotification(t *testing.T) {
	q := newTestQueue(t)

	err := q.EnqueueNotification(context.Background(), "sync_run.failed", map[string]interface{}{
		"run_id":      "run_1",
		"integration": "salesforce",
	})
	assert.NoError(t, err)
}
