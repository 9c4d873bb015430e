package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration
type Config struct {
	Analyzer string
	Refiner  string

	AzureEndpoint string
	AzureKey      string

	OllamaURL   string
	OllamaModel string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiKey   string
	GeminiModel string

	Concurrency       int
	RequestsPerSecond int
	CacheDB           string

	LayoutURL   string
	AssemblyURL string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Endpoint         string
	PresignTTL         time.Duration
}

var envBindings = map[string]string{
	"caption.analyzer":    "CAPTION_ANALYZER",
	"caption.refiner":     "CAPTION_REFINER",
	"caption.concurrency": "CAPTION_CONCURRENCY",
	"caption.rps":         "CAPTION_RPS",
	"cache.dbfile":        "CACHE_DB",
	"azure.endpoint":      "AZURE_VISION_ENDPOINT",
	"azure.key":           "AZURE_VISION_KEY",
	"ollama.url":          "OLLAMA_URL",
	"ollama.model":        "OLLAMA_MODEL",
	"openai.key":          "OPENAI_API_KEY",
	"openai.baseurl":      "OPENAI_BASE_URL",
	"openai.model":        "OPENAI_MODEL",
	"gemini.key":          "GEMINI_API_KEY",
	"gemini.model":        "GEMINI_MODEL",
	"layout.url":          "LAYOUT_URL",
	"assembly.url":        "ASSEMBLY_URL",
	"aws.region":          "AWS_REGION",
	"aws.accesskeyid":     "AWS_ACCESS_KEY_ID",
	"aws.secretaccesskey": "AWS_SECRET_ACCESS_KEY",
	"aws.bucket":          "AWS_S3_BUCKET",
	"aws.endpoint":        "AWS_S3_ENDPOINT",
	"aws.presignttl":      "PRESIGN_TTL",
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("caption.analyzer", "azure")
	v.SetDefault("caption.refiner", "openai")
	v.SetDefault("caption.concurrency", 0)
	v.SetDefault("caption.rps", 0)
	v.SetDefault("cache.dbfile", "")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llava")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("layout.url", "http://localhost:5000")
	v.SetDefault("assembly.url", "http://localhost:5001")
	v.SetDefault("aws.region", "ap-northeast-2")
	v.SetDefault("aws.presignttl", "1h")

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "env", env, "error", err)
		}
	}
}

// Load reads an optional alttext.yaml from the working directory (or the
// file named by configFile) on top of defaults and environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("alttext")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	}

	return FromViper(v)
}

// FromViper resolves a Config from an initialized viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Analyzer:           v.GetString("caption.analyzer"),
		Refiner:            v.GetString("caption.refiner"),
		AzureEndpoint:      v.GetString("azure.endpoint"),
		AzureKey:           v.GetString("azure.key"),
		OllamaURL:          v.GetString("ollama.url"),
		OllamaModel:        v.GetString("ollama.model"),
		OpenAIKey:          v.GetString("openai.key"),
		OpenAIBaseURL:      v.GetString("openai.baseurl"),
		OpenAIModel:        v.GetString("openai.model"),
		GeminiKey:          v.GetString("gemini.key"),
		GeminiModel:        v.GetString("gemini.model"),
		Concurrency:        v.GetInt("caption.concurrency"),
		RequestsPerSecond:  v.GetInt("caption.rps"),
		CacheDB:            v.GetString("cache.dbfile"),
		LayoutURL:          v.GetString("layout.url"),
		AssemblyURL:        v.GetString("assembly.url"),
		AWSRegion:          v.GetString("aws.region"),
		AWSAccessKeyID:     v.GetString("aws.accesskeyid"),
		AWSSecretAccessKey: v.GetString("aws.secretaccesskey"),
		S3Bucket:           v.GetString("aws.bucket"),
		S3Endpoint:         v.GetString("aws.endpoint"),
		PresignTTL:         v.GetDuration("aws.presignttl"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up with defaults
func (c *Config) Validate() error {
	switch c.Analyzer {
	case "azure", "ollama":
	default:
		return fmt.Errorf("unknown analyzer %q (want azure or ollama)", c.Analyzer)
	}
	switch c.Refiner {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown refiner %q (want openai or gemini)", c.Refiner)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("caption concurrency must not be negative")
	}
	if c.PresignTTL < 0 {
		return fmt.Errorf("presign ttl must not be negative")
	}
	return nil
}
