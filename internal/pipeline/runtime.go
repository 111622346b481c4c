package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/completion"
	"github.com/apresai/personacall/internal/config"
	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/region"
	"github.com/apresai/personacall/internal/tts"
)

// Runtime holds the long-lived components a turn needs. The CLI and the MCP
// server both build one from config.
type Runtime struct {
	Table        *region.Table
	Personas     persona.Store
	Orchestrator *call.Orchestrator
	// Speaker is nil unless a TTS provider is configured.
	Speaker tts.Provider
	Logger  *slog.Logger

	closers []func() error
}

// NewRuntime wires the profile table, persona store, completion client and
// call engine described by cfg.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Logger: logger}

	table, err := LoadTable(cfg.Regions.File)
	if err != nil {
		return nil, err
	}
	rt.Table = table

	store, closePersonas, err := OpenPersonas(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.Personas = store
	rt.closers = append(rt.closers, closePersonas)

	client, err := completion.NewClient(ctx, cfg.Model)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create completion client: %w", err)
	}
	guarded := completion.WithBreaker(client, completion.BreakerSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, logger)

	timing, err := call.ParseTiming(cfg.Timing)
	if err != nil {
		rt.Close()
		return nil, err
	}
	source := call.NewTimeSource()
	if cfg.Seed != 0 {
		source = call.NewSource(cfg.Seed)
	}

	gen := call.NewGenerator(guarded, call.GeneratorConfig{
		Temperature:      cfg.Generation.Temperature,
		MaxTokens:        cfg.Generation.MaxTokens,
		PresencePenalty:  &cfg.Generation.PresencePenalty,
		FrequencyPenalty: &cfg.Generation.FrequencyPenalty,
	})
	engine := call.NewEngine(gen, table,
		call.WithSource(source),
		call.WithTiming(timing),
		call.WithTimeout(cfg.Generation.Timeout),
		call.WithLogger(logger),
	)
	rt.Orchestrator = call.NewOrchestrator(engine, logger)

	if cfg.TTS.Provider != "" {
		speaker, err := tts.NewProvider(ctx, cfg.TTS.Provider)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Speaker = speaker
		rt.closers = append(rt.closers, speaker.Close)
	}

	logger.Info("Runtime ready",
		"model", cfg.Model,
		"provider", client.Name(),
		"personas", cfg.Personas.Source,
		"timing", cfg.Timing,
		"tts", cfg.TTS.Provider,
	)
	return rt, nil
}

// Close releases clients opened by NewRuntime.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// LoadTable returns the embedded profile table, or the one at path when set.
func LoadTable(path string) (*region.Table, error) {
	if path == "" {
		return region.DefaultTable()
	}
	return region.LoadTable(path)
}

// OpenPersonas builds the configured persona store, wrapped in the Redis
// cache when cache.redis_url is set. The returned func releases it.
func OpenPersonas(ctx context.Context, cfg *config.Config, logger *slog.Logger) (persona.Store, func() error, error) {
	noop := func() error { return nil }

	var store persona.Store
	switch cfg.Personas.Source {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Server.AWSRegion))
		if err != nil {
			return nil, noop, fmt.Errorf("load AWS config: %w", err)
		}
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
		store = persona.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Personas.Table)
	default:
		mem, err := persona.LoadFile(cfg.Personas.File)
		if err != nil {
			return nil, noop, err
		}
		store = mem
	}

	if cfg.Cache.RedisURL == "" {
		return store, noop, nil
	}
	rdb, err := persona.NewRedisClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, noop, err
	}
	return persona.NewCachedStore(store, rdb, cfg.Cache.TTL, logger), rdb.Close, nil
}
