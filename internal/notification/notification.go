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

package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/internal/request"
)

// WebhookEvent is the envelope posted to the configured outbound webhook.
type WebhookEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// SlackNotification sends a message to the configured Slack webhook. The
// header and fields are rendered as Slack blocks.
func SlackNotification(header string, fields map[string]string) {
	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type":  "plain_text",
				"text":  header,
				"emoji": true,
			},
		},
	}
	for name, value := range fields {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*%s:*\n%s", name, value)},
			},
		})
	}

	payload, err := request.ToJsonReq(map[string]interface{}{"blocks": blocks})
	if err != nil {
		log.Println(err)
		return
	}

	req, err := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if err != nil {
		log.Println(err)
		return
	}

	var response map[string]interface{}
	_, err = request.Call(req, &response)
	if err != nil {
		log.Println(err)
	}
}

// NotifyError logs an error and reports it to Slack if configured. The
// notification runs asynchronously to avoid blocking the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		SlackNotification("Error From Syncwatch 🐞", map[string]string{
			"Error": systemError.Error(),
			"Time":  time.Now().Format(time.RFC822),
		})
	}(systemError)
}

// NotifyIntegrationDown reports a healthy-to-down transition for an
// integration through every configured channel. It fires asynchronously; a
// lost notification must never fail the aggregation that triggered it.
func NotifyIntegrationDown(integration string, consecutiveFailures int, lastSuccess *time.Time) {
	go func() {
		lastSuccessText := "never"
		if lastSuccess != nil {
			lastSuccessText = lastSuccess.Format(time.RFC822)
		}

		SlackNotification("Integration Down 🚨", map[string]string{
			"Integration":          integration,
			"Consecutive Failures": fmt.Sprintf("%d", consecutiveFailures),
			"Last Successful Sync": lastSuccessText,
			"Time":                 time.Now().Format(time.RFC822),
		})

		err := DispatchWebhook(WebhookEvent{
			Event: "integration.down",
			Payload: map[string]interface{}{
				"integration":          integration,
				"consecutive_failures": consecutiveFailures,
				"last_successful_sync": lastSuccess,
			},
		})
		if err != nil {
			logrus.Errorf("failed to dispatch integration.down webhook for %s: %v", integration, err)
		}
	}()
}

// NotifyCriticalDiscrepancy pushes a critical discrepancy to the outbound
// webhook so downstream alerting can page on it.
func NotifyCriticalDiscrepancy(discrepancyID, entityType, sourceSystem, targetSystem string) {
	go func() {
		err := DispatchWebhook(WebhookEvent{
			Event: "discrepancy.critical",
			Payload: map[string]interface{}{
				"discrepancy_id": discrepancyID,
				"entity_type":    entityType,
				"source_system":  sourceSystem,
				"target_system":  targetSystem,
			},
		})
		if err != nil {
			logrus.Errorf("failed to dispatch discrepancy.critical webhook: %v", err)
		}
	}()
}

// DispatchWebhook posts an event to the configured outbound webhook,
// retrying transient failures with exponential backoff. A missing webhook
// URL is a quiet no-op.
func DispatchWebhook(event WebhookEvent) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, bytes.NewBuffer(jsonData))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for key, value := range conf.Notification.Webhook.Headers {
			req.Header.Set(key, value)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer func(body io.ReadCloser) {
			if err := body.Close(); err != nil {
				logrus.Error(err)
			}
		}(resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("webhook rejected event with status %d", resp.StatusCode))
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	return backoff.Retry(operation, policy)
}
