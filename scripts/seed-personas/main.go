// Command seed-personas loads a persona JSON file into the DynamoDB persona
// table, optionally dropping stale entries from the Redis persona cache.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/apresai/personacall/internal/persona"
)

func main() {
	var (
		file     = flag.String("file", "personas.json", "Persona JSON file (array of persona records)")
		table    = flag.String("table", "personacall", "Destination DynamoDB table")
		region   = flag.String("region", "us-east-1", "AWS region")
		redisURL = flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL whose persona cache should be invalidated")
		dryRun   = flag.Bool("dry-run", false, "Parse and validate but don't write")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src, err := persona.LoadFile(*file)
	if err != nil {
		slog.Error("Failed to load personas", "file", *file, "error", err)
		os.Exit(1)
	}
	personas, _ := src.List(ctx)

	if *dryRun {
		slog.Info("DRY RUN MODE - no writes will be performed", "personas", len(personas))
		for _, p := range personas {
			slog.Info("Would seed", "persona_id", p.ID, "name", p.Name, "location", p.Location)
		}
		return
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*region))
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	store := persona.NewDynamoStore(dynamodb.NewFromConfig(cfg), *table)

	var cache *persona.CachedStore
	if *redisURL != "" {
		rdb, err := persona.NewRedisClient(ctx, *redisURL)
		if err != nil {
			slog.Warn("Redis unavailable, skipping cache invalidation", "error", err)
		} else {
			defer rdb.Close()
			cache = persona.NewCachedStore(store, rdb, 0, logger)
		}
	}

	slog.Info("Seeding personas", "file", *file, "table", *table, "count", len(personas))

	var written, failed int
	for _, p := range personas {
		if p.ID == "" {
			p.ID = p.Name
		}
		if err := store.Put(ctx, p); err != nil {
			slog.Error("Put failed", "persona_id", p.ID, "error", err)
			failed++
			continue
		}
		written++
		if cache != nil {
			if err := cache.Invalidate(ctx, p.ID); err != nil {
				slog.Warn("Cache invalidation failed", "persona_id", p.ID, "error", err)
			}
		}
	}

	slog.Info("Seeding complete", "written", written, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
