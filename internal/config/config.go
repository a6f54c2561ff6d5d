package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application settings. Values come from the environment,
// optionally seeded from .env and from the YAML file named by CONFIG_PATH;
// the environment always wins.
type Config struct {
	AppEnv           string        `yaml:"app_env" env:"APP_ENV" env-default:"development"`
	HTTPAddr         string        `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	CORSAllowOrigins []string      `yaml:"cors_allow_origins" env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"*"`
	ExportTimeout    time.Duration `yaml:"export_timeout" env:"EXPORT_TIMEOUT" env-default:"5m"`
	ExportWindows    int           `yaml:"export_windows" env:"EXPORT_WINDOW_CONCURRENCY" env-default:"4"`
	ToolOutputDir    string        `yaml:"tool_output_dir" env:"TOOL_OUTPUT_DIR"`

	Log   LogConfig   `yaml:"log"`
	Fetch FetchConfig `yaml:"fetch"`
	Cache CacheConfig `yaml:"cache"`
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file" env:"LOG_FILE"`
}

// FetchConfig controls how asset references are loaded.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" env:"FETCH_TIMEOUT" env-default:"30s"`
	Concurrency int           `yaml:"concurrency" env:"FETCH_CONCURRENCY" env-default:"10"`
	MaxBytes    int64         `yaml:"max_bytes" env:"FETCH_MAX_BYTES" env-default:"209715200"`
	UserAgent   string        `yaml:"user_agent" env:"FETCH_USER_AGENT"`
	LocalRoot   string        `yaml:"local_root" env:"ASSET_LOCAL_ROOT"`
}

// CacheConfig selects the shared fetch cache: memory, redis or none.
type CacheConfig struct {
	Backend       string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	TTL           time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
	MaxEntryBytes int64         `yaml:"max_entry_bytes" env:"CACHE_MAX_ENTRY_BYTES" env-default:"16777216"`
	KeyPrefix     string        `yaml:"key_prefix" env:"CACHE_KEY_PREFIX" env-default:"vrewexport:fetch:"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
}

// S3Config is used for s3:// references and for publishing job results.
// Empty values fall back to the AWS default chain.
type S3Config struct {
	Region       string `yaml:"region" env:"S3_REGION"`
	Profile      string `yaml:"profile" env:"S3_PROFILE"`
	UsePathStyle bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"false"`
}

// KafkaConfig enables the export job consumer when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"vrew-export-jobs"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"vrewexport"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Load reads .env when present, then CONFIG_PATH when set, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("config: CACHE_BACKEND=redis needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.Log.Format)
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("config: FETCH_CONCURRENCY must be positive")
	}
	if c.ExportWindows <= 0 {
		return fmt.Errorf("config: EXPORT_WINDOW_CONCURRENCY must be positive")
	}
	return nil
}
