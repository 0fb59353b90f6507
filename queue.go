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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/syncwatch/syncwatch/config"
	redis_db "github.com/syncwatch/syncwatch/internal/redis-db"
)

// Task type names registered with the worker mux.
const (
	TaskAggregateHealth = "health:aggregate"
	TaskNotifyEvent     = "notification:dispatch"
)

// HealthAggregatePayload is the payload for a health aggregation task. An
// empty Integration means aggregate every known integration.
type HealthAggregatePayload struct {
	Integration string `json:"integration"`
}

// NotificationPayload carries an out-of-band notification event to the
// notification worker.
type NotificationPayload struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

// Queue represents a queue for handling various tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueHealthAggregation enqueues a health aggregation task for one
// integration. The task ID pins one pending aggregation per integration, so
// repeated enqueues while a task is still waiting collapse into one.
func (q *Queue) EnqueueHealthAggregation(ctx context.Context, integration string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(HealthAggregatePayload{Integration: integration})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:%s", TaskAggregateHealth, integration)),
		asynq.Queue(cfg.Queue.HealthQueue),
		asynq.MaxRetry(3),
	}
	task := asynq.NewTask(TaskAggregateHealth, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued health aggregation: %s", integration)
	return nil
}

// EnqueueNotification pushes a notification event onto the notification
// queue for asynchronous delivery.
func (q *Queue) EnqueueNotification(ctx context.Context, event string, payload map[string]interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	body, err := json.Marshal(NotificationPayload{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.Queue(cfg.Queue.NotificationQueue),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	task := asynq.NewTask(TaskNotifyEvent, body, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// PendingHealthAggregations reports how many aggregation tasks are waiting,
// used by the workers command for startup diagnostics.
func (q *Queue) PendingHealthAggregations() (int, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	info, err := q.Inspector.GetQueueInfo(cfg.Queue.HealthQueue)
	if err != nil {
		return 0, err
	}
	return info.Pending, nil
}
