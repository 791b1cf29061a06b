package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend identifies which item store a process runs against.
type Backend string

const (
	BackendSnapshot Backend = "snapshot"
	BackendPostgres Backend = "postgres"
)

const (
	defaultServerPort    = 3001
	defaultDataDir       = "data"
	defaultUploadsDir    = "uploads"
	defaultSnapshotName  = "lost_found.db"
	defaultEventsChannel = "lostfound.items"
)

type Config struct {
	ServerPort  int            `yaml:"server_port"`
	CORSOrigins []string       `yaml:"cors_allowed_origins"`
	Database    DatabaseConfig `yaml:"database"`
	Assets      AssetsConfig   `yaml:"assets"`
	Events      EventsConfig   `yaml:"events"`
	Log         LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	// URL is the Postgres connection string. When empty the embedded
	// snapshot backend is used.
	URL string `yaml:"url"`

	DataDir      string `yaml:"data_dir"`
	SnapshotFile string `yaml:"snapshot_file"`
}

type AssetsConfig struct {
	Backend    string      `yaml:"backend"`
	UploadsDir string      `yaml:"uploads_dir"`
	Minio      MinioConfig `yaml:"minio"`
	GCS        GCSConfig   `yaml:"gcs"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type EventsConfig struct {
	Backend  string         `yaml:"backend"`
	Channel  string         `yaml:"channel"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	PubSub   PubSubConfig   `yaml:"pubsub"`
}

type RabbitMQConfig struct {
	URL             string `yaml:"url"`
	PrefetchCount   int    `yaml:"prefetch_count"`
	QueueDurable    bool   `yaml:"queue_durable"`
	QueueAutoDelete bool   `yaml:"queue_auto_delete"`
}

type PubSubConfig struct {
	ProjectID          string `yaml:"project_id"`
	CredentialsFile    string `yaml:"credentials_file"`
	SubscriptionSuffix string `yaml:"subscription_suffix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Backend reports the item store selected by this configuration. The choice
// is made once from the presence of a database URL.
func (c Config) Backend() Backend {
	if strings.TrimSpace(c.Database.URL) != "" {
		return BackendPostgres
	}
	return BackendSnapshot
}

// Validate reports configuration that would prevent the server from starting.
func (c Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	if c.Backend() == BackendSnapshot && strings.TrimSpace(c.Database.SnapshotFile) == "" {
		return errors.New("snapshot file path is required")
	}
	switch c.Assets.Backend {
	case "local":
		if strings.TrimSpace(c.Assets.UploadsDir) == "" {
			return errors.New("uploads dir is required")
		}
	case "minio", "gcs":
	default:
		return fmt.Errorf("unknown asset backend %q", c.Assets.Backend)
	}
	switch c.Events.Backend {
	case "none", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	return nil
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	var base Config
	if path := strings.TrimSpace(os.Getenv("LOSTFOUND_CONFIG")); path != "" {
		// A broken overlay file falls back to env-only configuration.
		if loaded, err := loadFile(path); err == nil {
			base = loaded
		} else {
			fmt.Fprintf(os.Stderr, "ignoring config file %s: %v\n", path, err)
		}
	}

	dataDir := getEnv("DATA_DIR", orDefault(base.Database.DataDir, defaultDataDir))
	snapshot := orDefault(base.Database.SnapshotFile, filepath.Join(dataDir, defaultSnapshotName))

	dbConfig := DatabaseConfig{
		URL:          getEnv("DATABASE_URL", base.Database.URL),
		DataDir:      dataDir,
		SnapshotFile: getEnv("DB_FILE", snapshot),
	}

	assets := AssetsConfig{
		Backend:    strings.ToLower(getEnv("ASSET_BACKEND", orDefault(base.Assets.Backend, "local"))),
		UploadsDir: getEnv("UPLOADS_DIR", orDefault(base.Assets.UploadsDir, defaultUploadsDir)),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", base.Assets.Minio.Endpoint),
			AccessKey: getEnv("MINIO_ACCESS_KEY", base.Assets.Minio.AccessKey),
			SecretKey: getEnv("MINIO_SECRET_KEY", base.Assets.Minio.SecretKey),
			Bucket:    getEnv("MINIO_BUCKET", base.Assets.Minio.Bucket),
			UseSSL:    getEnvBool("MINIO_USE_SSL", base.Assets.Minio.UseSSL),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", base.Assets.GCS.Bucket),
			ProjectID:       getEnv("GCS_PROJECT_ID", base.Assets.GCS.ProjectID),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", base.Assets.GCS.CredentialsFile),
		},
	}

	events := EventsConfig{
		Backend: strings.ToLower(getEnv("EVENTS_BACKEND", orDefault(base.Events.Backend, "none"))),
		Channel: getEnv("EVENTS_CHANNEL", orDefault(base.Events.Channel, defaultEventsChannel)),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", base.Events.RabbitMQ.URL),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", base.Events.RabbitMQ.PrefetchCount),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", base.Events.RabbitMQ.QueueDurable),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", base.Events.RabbitMQ.QueueAutoDelete),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", base.Events.PubSub.ProjectID),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", base.Events.PubSub.CredentialsFile),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", base.Events.PubSub.SubscriptionSuffix),
		},
	}

	logConfig := LogConfig{
		Level:  getEnv("LOG_LEVEL", orDefault(base.Log.Level, "info")),
		Format: getEnv("LOG_FORMAT", orDefault(base.Log.Format, "console")),
		File:   getEnv("LOG_FILE", base.Log.File),
	}

	origins := base.CORSOrigins
	if raw, exists := os.LookupEnv("CORS_ALLOWED_ORIGINS"); exists {
		origins = splitList(raw)
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	port := base.ServerPort
	if port == 0 {
		port = defaultServerPort
	}

	return Config{
		ServerPort:  getEnvInt("PORT", port),
		CORSOrigins: origins,
		Database:    dbConfig,
		Assets:      assets,
		Events:      events,
		Log:         logConfig,
	}
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
