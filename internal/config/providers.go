package config

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/alttext/internal/azure"
	"github.com/lehigh-university-libraries/alttext/internal/cache"
	"github.com/lehigh-university-libraries/alttext/internal/gemini"
	"github.com/lehigh-university-libraries/alttext/internal/ollama"
	"github.com/lehigh-university-libraries/alttext/internal/openai"
	"github.com/lehigh-university-libraries/alttext/internal/providers"
	"github.com/lehigh-university-libraries/alttext/internal/ratelimit"
)

// AnalyzerFactory builds the configured direct analyzer. When db is non-nil
// every analyzer is wrapped with the caption cache.
func (c *Config) AnalyzerFactory(db *cache.CacheDB) providers.AnalyzerFactory {
	return func(ctx context.Context) (providers.Analyzer, error) {
		var analyzer providers.Analyzer
		switch c.Analyzer {
		case "azure":
			client, err := azure.New(azure.Config{Endpoint: c.AzureEndpoint, Key: c.AzureKey})
			if err != nil {
				return nil, err
			}
			analyzer = client
		case "ollama":
			analyzer = ollama.New(c.OllamaURL, providers.Config{Model: c.OllamaModel})
		default:
			return nil, fmt.Errorf("unknown analyzer %q", c.Analyzer)
		}
		if db != nil {
			return cache.Wrap(analyzer, db), nil
		}
		return analyzer, nil
	}
}

// RefinerFactory builds the configured batch refiner
func (c *Config) RefinerFactory() providers.RefinerFactory {
	return func(ctx context.Context) (providers.Refiner, error) {
		switch c.Refiner {
		case "openai":
			client, err := openai.New(openai.Config{
				APIKey:  c.OpenAIKey,
				BaseURL: c.OpenAIBaseURL,
				Model:   c.OpenAIModel,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		case "gemini":
			client, err := gemini.New(ctx, c.GeminiKey, providers.Config{Model: c.GeminiModel})
			if err != nil {
				return nil, err
			}
			return client, nil
		default:
			return nil, fmt.Errorf("unknown refiner %q", c.Refiner)
		}
	}
}

// Limiter returns the direct call limiter, or nil when unthrottled
func (c *Config) Limiter() *ratelimit.Limiter {
	return ratelimit.New(c.Analyzer, c.RequestsPerSecond)
}
