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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5401"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"SYNCWATCH_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"SYNCWATCH_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SYNCWATCH_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"SYNCWATCH_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"SYNCWATCH_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"SYNCWATCH_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SYNCWATCH_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"SYNCWATCH_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"SYNCWATCH_REDIS_SKIP_TLS_VERIFY"`
}

// IntegrationConfig names one external system whose data is mirrored.
// Integrations are a deployment-time enumeration, not a runtime table.
type IntegrationConfig struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SeverityBands are the delta-percent boundaries for monetary mismatches.
// Bands are closed on the right: low covers deltas up to and including
// LowMaxPercent, medium up to and including MediumMaxPercent, and so on;
// anything above HighMaxPercent is critical.
type SeverityBands struct {
	LowMaxPercent    float64 `json:"low_max_percent" envconfig:"SYNCWATCH_SEVERITY_LOW_MAX"`
	MediumMaxPercent float64 `json:"medium_max_percent" envconfig:"SYNCWATCH_SEVERITY_MEDIUM_MAX"`
	HighMaxPercent   float64 `json:"high_max_percent" envconfig:"SYNCWATCH_SEVERITY_HIGH_MAX"`
}

// ReconciliationConfig holds the comparison tolerances. These are operating
// assumptions, not extracted business rules, so they are deliberately
// configurable rather than hard-coded.
type ReconciliationConfig struct {
	CentTolerance     float64       `json:"cent_tolerance" envconfig:"SYNCWATCH_RECON_CENT_TOLERANCE"`
	RelativeTolerance float64       `json:"relative_tolerance" envconfig:"SYNCWATCH_RECON_RELATIVE_TOLERANCE"`
	Timezone          string        `json:"timezone" envconfig:"SYNCWATCH_RECON_TIMEZONE"`
	SeverityBands     SeverityBands `json:"severity_bands"`
}

// HealthConfig controls the health aggregator tick and status derivation.
type HealthConfig struct {
	AggregationIntervalSec   int     `json:"aggregation_interval_sec" envconfig:"SYNCWATCH_HEALTH_INTERVAL_SEC"`
	SLAWindowHours           int     `json:"sla_window_hours" envconfig:"SYNCWATCH_HEALTH_SLA_WINDOW_HOURS"`
	DownConsecutiveFailures  int     `json:"down_consecutive_failures" envconfig:"SYNCWATCH_HEALTH_DOWN_FAILURES"`
	DegradedErrorRatePercent float64 `json:"degraded_error_rate_percent" envconfig:"SYNCWATCH_HEALTH_DEGRADED_ERROR_RATE"`
	AvgWindowRuns            int     `json:"avg_window_runs" envconfig:"SYNCWATCH_HEALTH_AVG_WINDOW_RUNS"`
	RetentionDays            int     `json:"retention_days" envconfig:"SYNCWATCH_HEALTH_RETENTION_DAYS"`
}

// SLAWindow returns the maximum allowed age of the last successful sync.
func (h HealthConfig) SLAWindow() time.Duration {
	return time.Duration(h.SLAWindowHours) * time.Hour
}

// AggregationInterval returns the tick period of the health aggregator.
func (h HealthConfig) AggregationInterval() time.Duration {
	return time.Duration(h.AggregationIntervalSec) * time.Second
}

type QueueConfig struct {
	HealthQueue       string `json:"health_queue" envconfig:"SYNCWATCH_QUEUE_HEALTH"`
	NotificationQueue string `json:"notification_queue" envconfig:"SYNCWATCH_QUEUE_NOTIFICATION"`
	WorkerConcurrency int    `json:"worker_concurrency" envconfig:"SYNCWATCH_QUEUE_CONCURRENCY"`
	MonitoringPort    string `json:"monitoring_port" envconfig:"SYNCWATCH_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"SYNCWATCH_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"SYNCWATCH_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"SYNCWATCH_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type OtelConfig struct {
	Endpoint string `json:"endpoint" envconfig:"SYNCWATCH_OTEL_ENDPOINT"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"SYNCWATCH_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Integrations   []IntegrationConfig  `json:"integrations"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Health         HealthConfig         `json:"health"`
	Queue          QueueConfig          `json:"queue"`
	Notification   Notification         `json:"notification"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
	Otel           OtelConfig           `json:"otel"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("syncwatch", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called syncwatch.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Syncwatch Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	for i := range cnf.Integrations {
		cnf.Integrations[i].Key = strings.ToLower(strings.TrimSpace(cnf.Integrations[i].Key))
		if cnf.Integrations[i].Key == "" {
			return errors.New("integration key cannot be empty")
		}
	}

	cnf.applyEngineDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// applyEngineDefaults fills the threshold and queue defaults. It is shared by
// the normal load path and MockConfig so tests get the same bands the server
// runs with.
func (cnf *Configuration) applyEngineDefaults() {
	if cnf.Reconciliation.CentTolerance <= 0 {
		cnf.Reconciliation.CentTolerance = 0.01
	}
	if cnf.Reconciliation.RelativeTolerance <= 0 {
		cnf.Reconciliation.RelativeTolerance = 0.001
	}
	if cnf.Reconciliation.Timezone == "" {
		cnf.Reconciliation.Timezone = "UTC"
	}
	if cnf.Reconciliation.SeverityBands.LowMaxPercent <= 0 {
		cnf.Reconciliation.SeverityBands.LowMaxPercent = 1
	}
	if cnf.Reconciliation.SeverityBands.MediumMaxPercent <= 0 {
		cnf.Reconciliation.SeverityBands.MediumMaxPercent = 5
	}
	if cnf.Reconciliation.SeverityBands.HighMaxPercent <= 0 {
		cnf.Reconciliation.SeverityBands.HighMaxPercent = 20
	}

	if cnf.Health.AggregationIntervalSec <= 0 {
		cnf.Health.AggregationIntervalSec = 120
	}
	if cnf.Health.SLAWindowHours <= 0 {
		cnf.Health.SLAWindowHours = 24
	}
	if cnf.Health.DownConsecutiveFailures <= 0 {
		cnf.Health.DownConsecutiveFailures = 3
	}
	if cnf.Health.DegradedErrorRatePercent <= 0 {
		cnf.Health.DegradedErrorRatePercent = 5
	}
	if cnf.Health.AvgWindowRuns <= 0 {
		cnf.Health.AvgWindowRuns = 20
	}
	if cnf.Health.RetentionDays <= 0 {
		cnf.Health.RetentionDays = 30
	}

	if cnf.Queue.HealthQueue == "" {
		cnf.Queue.HealthQueue = "syncwatch_health"
	}
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "syncwatch_notification"
	}
	if cnf.Queue.WorkerConcurrency <= 0 {
		cnf.Queue.WorkerConcurrency = 10
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5001"
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyEngineDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
