package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Hossein925/f-maharat/internal/blob"
	"github.com/Hossein925/f-maharat/internal/common/config"
)

// Trigger modes for picking up remote changes.
const (
	TriggerNotify  = "notify"  // Postgres LISTEN/NOTIFY
	TriggerRedis   = "redis"   // Redis pub/sub
	TriggerMQTT    = "mqtt"    // MQTT topic
	TriggerPolling = "polling" // periodic full refresh
)

// Config is the skill-sync service configuration.
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Blob blob.Config

	Local struct {
		Driver    string // "sqlite" or "redis"
		Path      string // sqlite file
		KeyPrefix string // redis key prefix
	}

	Sync struct {
		// TriggerMode selects the change listener: notify, redis, mqtt or polling.
		TriggerMode    string
		NotifyChannel  string // Postgres channel, also the Redis pub/sub channel
		TopicPrefix    string // MQTT topic prefix
		PollInterval   time.Duration
		RefreshTimeout time.Duration
		CascadeDeletes bool
	}

	Attachment struct {
		FetchMode    string // "http" or "store"
		FetchTimeout time.Duration
	}

	// Admin credentials gate RestoreBackup.
	Admin struct {
		NationalID string
		Password   string
	}

	Metrics struct {
		Addr string // empty disables the endpoint
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "maharat",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "skill-sync", QoS: 1}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Blob.Driver = blob.Driver(getEnv("BLOB_DRIVER", string(blob.DriverFilesystem)))
	cfg.Blob.FSRoot = getEnv("BLOB_FS_ROOT", "./blobdata")
	cfg.Blob.PublicBaseURL = getEnv("BLOB_PUBLIC_BASE_URL", "")
	cfg.Blob.S3.Region = getEnv("BLOB_S3_REGION", "us-east-1")
	cfg.Blob.S3.Bucket = getEnv("BLOB_S3_BUCKET", "")
	cfg.Blob.S3.Endpoint = getEnv("BLOB_S3_ENDPOINT", "")
	cfg.Blob.S3.AccessKeyID = getEnv("BLOB_S3_ACCESS_KEY_ID", "")
	cfg.Blob.S3.SecretAccessKey = getEnv("BLOB_S3_SECRET_ACCESS_KEY", "")
	cfg.Blob.S3.SessionToken = getEnv("BLOB_S3_SESSION_TOKEN", "")
	cfg.Blob.S3.PathStyle = getEnvBool("BLOB_S3_PATH_STYLE", false)

	cfg.Local.Driver = getEnv("LOCAL_STORE_DRIVER", "sqlite")
	cfg.Local.Path = getEnv("LOCAL_STORE_PATH", "./data/local.db")
	cfg.Local.KeyPrefix = getEnv("LOCAL_STORE_KEY_PREFIX", "maharat:")

	cfg.Sync.TriggerMode = getEnv("SYNC_TRIGGER_MODE", TriggerNotify)
	cfg.Sync.NotifyChannel = getEnv("SYNC_NOTIFY_CHANNEL", "table_changes")
	cfg.Sync.TopicPrefix = getEnv("SYNC_TOPIC_PREFIX", "maharat/changes")
	cfg.Sync.PollInterval = getEnvDuration("SYNC_POLLING_INTERVAL", time.Minute)
	cfg.Sync.RefreshTimeout = getEnvDuration("SYNC_REFRESH_TIMEOUT", 30*time.Second)
	cfg.Sync.CascadeDeletes = getEnvBool("SYNC_CASCADE_DELETES", true)

	cfg.Attachment.FetchMode = getEnv("ATTACHMENT_FETCH_MODE", "http")
	cfg.Attachment.FetchTimeout = getEnvDuration("ATTACHMENT_FETCH_TIMEOUT", 30*time.Second)

	cfg.Admin.NationalID = getEnv("ADMIN_NATIONAL_ID", "")
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", "")

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Sync.TriggerMode {
	case TriggerNotify, TriggerRedis, TriggerMQTT, TriggerPolling:
	default:
		return fmt.Errorf("invalid SYNC_TRIGGER_MODE %q", c.Sync.TriggerMode)
	}
	switch c.Local.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid LOCAL_STORE_DRIVER %q", c.Local.Driver)
	}
	switch c.Attachment.FetchMode {
	case "http", "store":
	default:
		return fmt.Errorf("invalid ATTACHMENT_FETCH_MODE %q", c.Attachment.FetchMode)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid BLOB_DRIVER %q", c.Blob.Driver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return defaultValue
}
