// Package config loads worker configuration from a YAML file, with
// environment variables layered on top as overrides, following the
// teacher's yaml.v3-plus-defaults() idiom (domkeeper.Config,
// veille.Config). A .env file is loaded first via godotenv so local
// development can set the same variables without exporting them in the
// shell; real environment variables always win over .env values, and .env
// values always win over YAML, since godotenv.Load only ever fills
// variables not already present in os.Environ().
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NotifySink selects which delivery sink the worker dispatches
// notifications through.
type NotifySink string

const (
	NotifySinkSMTP NotifySink = "smtp"
	NotifySinkAMQP NotifySink = "amqp"
)

// SchedulerConfig controls the cadence and concurrency of the worker's
// background loops.
type SchedulerConfig struct {
	EnableScheduler         bool `yaml:"enable_scheduler"`
	EnableCheckScheduler    bool `yaml:"enable_check_scheduler"`
	EnableEmailScheduler    bool `yaml:"enable_email_scheduler"`
	EnableTrackingScheduler bool `yaml:"enable_tracking_scheduler"`
	EnableRetentionScheduler bool `yaml:"enable_retention_scheduler"`

	CheckIntervalMinutes          int `yaml:"check_interval_minutes"`
	EmailDeliveryIntervalMinutes  int `yaml:"email_delivery_interval_minutes"`
	TrackingIntervalMinutes       int `yaml:"tracking_interval_minutes"`
	RetentionIntervalHours        int `yaml:"retention_interval_hours"`

	// CheckScheduleCron and EmailScheduleCron optionally override the
	// fixed-interval ticker above with a cron expression (robfig/cron/v3
	// syntax). Empty means "use the interval field instead".
	CheckScheduleCron string `yaml:"check_schedule_cron"`
	EmailScheduleCron string `yaml:"email_schedule_cron"`

	MinCheckIntervalMinutes int `yaml:"min_check_interval_minutes"`
	MaxProductsPerRun       int `yaml:"max_products_per_run"`
	CheckLockTimeoutSeconds int `yaml:"check_lock_timeout_seconds"`
	CheckConcurrency        int `yaml:"check_concurrency"`
	TrackingConcurrency     int `yaml:"tracking_concurrency"`
	RetentionDays           int `yaml:"retention_days"`
	RunVacuumAfter          bool `yaml:"run_vacuum_after"`

	DisableRenderedFetch bool `yaml:"disable_rendered_fetch"`
}

// NotifyConfig configures the notification delivery sink.
type NotifyConfig struct {
	Sink NotifySink `yaml:"sink"`

	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
	SMTPFrom string `yaml:"smtp_from"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPRouting  string `yaml:"amqp_routing_key"`
}

// Config holds all worker configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	WorkerPort  int    `yaml:"worker_port"`
	LogLevel    string `yaml:"log_level"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
}

func (c *Config) defaults() {
	if c.WorkerPort <= 0 {
		c.WorkerPort = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	s := &c.Scheduler
	if s.CheckIntervalMinutes <= 0 {
		s.CheckIntervalMinutes = 30
	}
	if s.EmailDeliveryIntervalMinutes <= 0 {
		s.EmailDeliveryIntervalMinutes = 5
	}
	if s.TrackingIntervalMinutes <= 0 {
		s.TrackingIntervalMinutes = 15
	}
	if s.RetentionIntervalHours <= 0 {
		s.RetentionIntervalHours = 24
	}
	if s.MinCheckIntervalMinutes <= 0 {
		s.MinCheckIntervalMinutes = 30
	}
	if s.MaxProductsPerRun <= 0 {
		s.MaxProductsPerRun = 50
	}
	if s.CheckLockTimeoutSeconds <= 0 {
		s.CheckLockTimeoutSeconds = 300
	}
	if s.CheckConcurrency <= 0 {
		s.CheckConcurrency = 5
	}
	if s.TrackingConcurrency <= 0 {
		s.TrackingConcurrency = 8
	}
	if s.RetentionDays <= 0 {
		s.RetentionDays = 90
	}

	if c.Notify.Sink == "" {
		c.Notify.Sink = NotifySinkSMTP
	}
	if c.Notify.SMTPPort <= 0 {
		c.Notify.SMTPPort = 587
	}
}

// Load reads configuration from an optional YAML file at path (ignored if
// empty or missing), then overlays environment variables (after loading a
// local .env file, if present) on top. Environment variables always win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.defaults()
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.WorkerPort = getEnvInt("WORKER_PORT", c.WorkerPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	s := &c.Scheduler
	s.EnableScheduler = getEnvBool("ENABLE_SCHEDULER", s.EnableScheduler)
	s.EnableCheckScheduler = getEnvBool("ENABLE_CHECK_SCHEDULER", s.EnableCheckScheduler)
	s.EnableEmailScheduler = getEnvBool("ENABLE_EMAIL_SCHEDULER", s.EnableEmailScheduler)
	s.EnableTrackingScheduler = getEnvBool("ENABLE_TRACKING_SCHEDULER", s.EnableTrackingScheduler)
	s.EnableRetentionScheduler = getEnvBool("ENABLE_RETENTION_SCHEDULER", s.EnableRetentionScheduler)

	s.CheckIntervalMinutes = getEnvInt("CHECK_INTERVAL_MINUTES", s.CheckIntervalMinutes)
	s.EmailDeliveryIntervalMinutes = getEnvInt("EMAIL_DELIVERY_INTERVAL_MINUTES", s.EmailDeliveryIntervalMinutes)
	s.TrackingIntervalMinutes = getEnvInt("TRACKING_INTERVAL_MINUTES", s.TrackingIntervalMinutes)
	s.RetentionIntervalHours = getEnvInt("RETENTION_INTERVAL_HOURS", s.RetentionIntervalHours)

	s.CheckScheduleCron = getEnv("CHECK_SCHEDULE_CRON", s.CheckScheduleCron)
	s.EmailScheduleCron = getEnv("EMAIL_SCHEDULE_CRON", s.EmailScheduleCron)

	s.MinCheckIntervalMinutes = getEnvInt("MIN_CHECK_INTERVAL_MINUTES", s.MinCheckIntervalMinutes)
	s.MaxProductsPerRun = getEnvInt("MAX_PRODUCTS_PER_RUN", s.MaxProductsPerRun)
	s.CheckLockTimeoutSeconds = getEnvInt("CHECK_LOCK_TIMEOUT_SECONDS", s.CheckLockTimeoutSeconds)
	s.CheckConcurrency = getEnvInt("CHECK_CONCURRENCY", s.CheckConcurrency)
	s.TrackingConcurrency = getEnvInt("TRACKING_CONCURRENCY", s.TrackingConcurrency)
	s.RetentionDays = getEnvInt("RETENTION_DAYS", s.RetentionDays)
	s.RunVacuumAfter = getEnvBool("RUN_VACUUM_AFTER", s.RunVacuumAfter)

	s.DisableRenderedFetch = getEnvBool("DISABLE_RENDERED_FETCH", s.DisableRenderedFetch)

	if v := getEnv("NOTIFY_SINK", string(c.Notify.Sink)); v != "" {
		c.Notify.Sink = NotifySink(v)
	}
	c.Notify.SMTPHost = getEnv("SMTP_HOST", c.Notify.SMTPHost)
	c.Notify.SMTPPort = getEnvInt("SMTP_PORT", c.Notify.SMTPPort)
	c.Notify.SMTPUser = getEnv("SMTP_USER", c.Notify.SMTPUser)
	c.Notify.SMTPPass = getEnv("SMTP_PASS", c.Notify.SMTPPass)
	c.Notify.SMTPFrom = getEnv("SMTP_FROM", c.Notify.SMTPFrom)
	c.Notify.AMQPURL = getEnv("AMQP_URL", c.Notify.AMQPURL)
	c.Notify.AMQPExchange = getEnv("AMQP_EXCHANGE", c.Notify.AMQPExchange)
	c.Notify.AMQPRouting = getEnv("AMQP_ROUTING_KEY", c.Notify.AMQPRouting)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// CheckInterval returns the check sweep cadence as a time.Duration.
func (s SchedulerConfig) CheckInterval() time.Duration {
	return time.Duration(s.CheckIntervalMinutes) * time.Minute
}

// EmailDeliveryInterval returns the notification delivery cadence.
func (s SchedulerConfig) EmailDeliveryInterval() time.Duration {
	return time.Duration(s.EmailDeliveryIntervalMinutes) * time.Minute
}

// TrackingInterval returns the tracking-loop cadence.
func (s SchedulerConfig) TrackingInterval() time.Duration {
	return time.Duration(s.TrackingIntervalMinutes) * time.Minute
}

// RetentionInterval returns the retention-sweep cadence.
func (s SchedulerConfig) RetentionInterval() time.Duration {
	return time.Duration(s.RetentionIntervalHours) * time.Hour
}

// MinCheckInterval returns the minimum time between checks for a single
// product (the per-product throttle floor).
func (s SchedulerConfig) MinCheckInterval() time.Duration {
	return time.Duration(s.MinCheckIntervalMinutes) * time.Minute
}

// CheckLockTimeout returns the Postgres lock_timeout applied to the session
// while a per-product check holds its advisory lock. Acquiring that lock
// itself never waits: a product whose lock is taken is skipped this sweep.
func (s SchedulerConfig) CheckLockTimeout() time.Duration {
	return time.Duration(s.CheckLockTimeoutSeconds) * time.Second
}
