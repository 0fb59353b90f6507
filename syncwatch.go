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
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/internal/cache"
	redis_db "github.com/syncwatch/syncwatch/internal/redis-db"
	"github.com/syncwatch/syncwatch/model"
)

// Syncwatch is the synchronization tracker and data-reconciliation engine.
// One instance is shared by the API server and the background workers.
type Syncwatch struct {
	queue      *Queue
	redis      redis.UniversalClient
	cache      cache.Cache
	datasource database.IDataSource
	fieldSpecs *model.FieldSpecRegistry
	comparator *Comparator
	classifier *Classifier
	clock      model.Clock
	newID      func(module string) string
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewSyncwatch initializes the engine with the provided datasource. It wires
// the redis client, the health-snapshot cache, the task queue, and the
// comparison/classification rules from configuration.
func NewSyncwatch(db database.IDataSource) (*Syncwatch, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	snapshotCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	comparator, err := NewComparator(configuration.Reconciliation)
	if err != nil {
		return nil, err
	}

	newQueue := NewQueue(configuration)
	engine := &Syncwatch{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		cache:      snapshotCache,
		fieldSpecs: model.NewFieldSpecRegistry(),
		comparator: comparator,
		classifier: NewClassifier(configuration.Reconciliation.SeverityBands),
		clock:      model.RealClock{},
		newID:      model.GenerateUUIDWithSuffix,
	}
	return engine, nil
}

// FieldSpecs exposes the registry so deployments can register additional
// entity types at startup.
func (s *Syncwatch) FieldSpecs() *model.FieldSpecRegistry {
	return s.fieldSpecs
}

// now returns the injected clock's time; tests construct the engine with a
// fixed clock so run timing and health-window math are deterministic.
func (s *Syncwatch) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Syncwatch) generateID(module string) string {
	if s.newID == nil {
		return model.GenerateUUIDWithSuffix(module)
	}
	return s.newID(module)
}

// knownIntegration checks an integration key against the configured
// enumeration. An empty configuration accepts any key, which keeps local
// development friction-free.
func (s *Syncwatch) knownIntegration(key string) bool {
	cfg, err := config.Fetch()
	if err != nil || len(cfg.Integrations) == 0 {
		return true
	}
	for _, integration := range cfg.Integrations {
		if integration.Key == key {
			return true
		}
	}
	return false
}
