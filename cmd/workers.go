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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/syncwatch/syncwatch"
	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/internal/notification"
	redis_db "github.com/syncwatch/syncwatch/internal/redis-db"
)

// processHealthAggregation handles a health aggregation task from the queue.
// An empty integration in the payload aggregates every integration with
// recorded runs.
func (b *syncwatchInstance) processHealthAggregation(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("syncwatch.health.worker").Start(ctx, "Process Health Aggregation From Queue")
	defer span.End()

	var payload syncwatch.HealthAggregatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	if payload.Integration == "" {
		if err := b.syncwatch.AggregateAll(ctx); err != nil {
			return err
		}
		log.Println(" [*] Health Aggregated for all integrations")
		return nil
	}

	if _, err := b.syncwatch.AggregateIntegration(ctx, payload.Integration); err != nil {
		return err
	}
	log.Println(" [*] Health Aggregated", payload.Integration)
	return nil
}

// processNotification dispatches a queued notification event to the
// configured webhook endpoint.
func (b *syncwatchInstance) processNotification(_ context.Context, t *asynq.Task) error {
	var payload syncwatch.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	err := notification.DispatchWebhook(notification.WebhookEvent{
		Event:   payload.Event,
		Payload: payload.Payload,
	})
	if err != nil {
		return err
	}

	log.Println(" [*] Notification Dispatched", payload.Event)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.HealthQueue] = 3
	queues[cfg.Queue.NotificationQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: conf.Queue.WorkerConcurrency,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *syncwatchInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(syncwatch.TaskAggregateHealth, b.processHealthAggregation)
	mux.HandleFunc(syncwatch.TaskNotifyEvent, b.processNotification)
}

// startAggregationTicker enqueues a fleet-wide health aggregation task every
// aggregation interval. Task IDs deduplicate ticks, so a slow worker never
// accumulates a backlog of identical aggregations.
func startAggregationTicker(ctx context.Context, conf *config.Configuration) {
	queue := syncwatch.NewQueue(conf)
	if pending, err := queue.PendingHealthAggregations(); err == nil && pending > 0 {
		log.Printf("Resuming with %d pending health aggregations", pending)
	}
	ticker := time.NewTicker(conf.Health.AggregationInterval())

	go func() {
		for range ticker.C {
			if err := queue.EnqueueHealthAggregation(ctx, ""); err != nil {
				logrus.Errorf("failed to enqueue scheduled health aggregation: %v", err)
			}
		}
	}()
}

// workerCommands defines the "workers" command to start worker processes.
// The workers consume the health aggregation and notification queues and run
// the periodic aggregation ticker.
func workerCommands(b *syncwatchInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start syncwatch workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			startAggregationTicker(ctx, conf)

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
