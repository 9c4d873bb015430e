package cmd

import (
	"log/slog"

	"github.com/lehigh-university-libraries/alttext/internal/accessibility"
	"github.com/lehigh-university-libraries/alttext/internal/cache"
	"github.com/lehigh-university-libraries/alttext/internal/captioning"
	"github.com/lehigh-university-libraries/alttext/internal/config"
)

// runtime holds everything a command needs to caption documents
type runtime struct {
	cfg      *config.Config
	cache    *cache.CacheDB
	pipeline *captioning.Pipeline
}

func newRuntime(format bool) (*runtime, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}
	if cfg.CacheDB != "" {
		rt.cache, err = cache.Open(cfg.CacheDB)
		if err != nil {
			return nil, err
		}
		slog.Debug("Caption cache enabled", "path", rt.cache.Path())
	}

	captioner := captioning.New(cfg.AnalyzerFactory(rt.cache), cfg.RefinerFactory(), captioning.Options{
		Concurrency: cfg.Concurrency,
		Limiter:     cfg.Limiter(),
	})

	var formatter *accessibility.Formatter
	if format {
		formatter = accessibility.NewFormatter()
	}
	rt.pipeline = captioning.NewPipeline(captioner, formatter)

	slog.Debug("Configured captioning",
		"analyzer", cfg.Analyzer,
		"refiner", cfg.Refiner,
		"concurrency", cfg.Concurrency,
		"rps", cfg.RequestsPerSecond)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.cache == nil {
		return
	}
	if err := rt.cache.Close(); err != nil {
		slog.Error("Failed to close caption cache", "err", err)
	}
}
