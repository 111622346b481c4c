package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration shared by the CLI and the MCP server.
type Config struct {
	Model      string           `mapstructure:"model"`
	LogLevel   string           `mapstructure:"log_level"`
	Timing     string           `mapstructure:"timing"`
	Seed       int64            `mapstructure:"seed"` // 0 seeds from the clock
	Generation GenerationConfig `mapstructure:"generation"`
	Regions    RegionsConfig    `mapstructure:"regions"`
	Personas   PersonasConfig   `mapstructure:"personas"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Server     ServerConfig     `mapstructure:"server"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type GenerationConfig struct {
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	PresencePenalty  float64       `mapstructure:"presence_penalty"`
	FrequencyPenalty float64       `mapstructure:"frequency_penalty"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type RegionsConfig struct {
	// File overrides the embedded profile table.
	File string `mapstructure:"file"`
}

type PersonasConfig struct {
	Source string `mapstructure:"source"` // file | dynamodb
	File   string `mapstructure:"file"`
	Table  string `mapstructure:"table"`
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type TTSConfig struct {
	Provider string `mapstructure:"provider"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	Table        string `mapstructure:"table"`
	Bucket       string `mapstructure:"bucket"`
	CDNBaseURL   string `mapstructure:"cdn_base_url"`
	AWSRegion    string `mapstructure:"aws_region"`
	SecretPrefix string `mapstructure:"secret_prefix"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// New returns a viper instance with defaults and environment bindings.
// Environment variables use the PERSONACALL_ prefix, e.g.
// PERSONACALL_GENERATION_TIMEOUT=5s.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("model", "haiku")
	v.SetDefault("log_level", "info")
	v.SetDefault("timing", "simultaneous")
	v.SetDefault("seed", 0)
	v.SetDefault("generation.temperature", 0.8)
	v.SetDefault("generation.max_tokens", 150)
	v.SetDefault("generation.presence_penalty", 0.6)
	v.SetDefault("generation.frequency_penalty", 0.5)
	v.SetDefault("generation.timeout", 8*time.Second)
	v.SetDefault("regions.file", "")
	v.SetDefault("personas.source", "file")
	v.SetDefault("personas.file", "personas.json")
	v.SetDefault("personas.table", "personacall")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
	v.SetDefault("tts.provider", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.table", "personacall")
	v.SetDefault("server.bucket", "")
	v.SetDefault("server.cdn_base_url", "")
	v.SetDefault("server.aws_region", "us-east-1")
	v.SetDefault("server.secret_prefix", "/personacall/")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "personacall")
	v.SetDefault("telemetry.environment", "development")

	v.SetEnvPrefix("PERSONACALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common variables without the prefix.
	_ = v.BindEnv("cache.redis_url", "REDIS_URL", "PERSONACALL_CACHE_REDIS_URL")
	_ = v.BindEnv("server.table", "DYNAMODB_TABLE", "PERSONACALL_SERVER_TABLE")
	_ = v.BindEnv("server.bucket", "S3_BUCKET", "PERSONACALL_SERVER_BUCKET")
	_ = v.BindEnv("server.aws_region", "AWS_REGION", "PERSONACALL_SERVER_AWS_REGION")
	_ = v.BindEnv("telemetry.enabled", "OTEL_ENABLED", "PERSONACALL_TELEMETRY_ENABLED")

	return v
}

// Load reads an optional config file into v and decodes the result. An
// empty path looks for personacall.yaml in the working directory and
// $HOME/.personacall; a missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("personacall")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.personacall")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a turn.
func (c *Config) Validate() error {
	var errs []error
	if c.Generation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("generation.timeout must be positive"))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens must be positive"))
	}
	switch c.Personas.Source {
	case "file", "dynamodb":
	default:
		errs = append(errs, fmt.Errorf("personas.source must be file or dynamodb, got %q", c.Personas.Source))
	}
	return errors.Join(errs...)
}
