package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/config"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/legacy"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/logger"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
)

// setupInfra connects the configured legacy directory backend. The
// returned cleanup closes whatever connection was opened.
func setupInfra(ctx context.Context, cfg config.Config) (legacy.Directory, func() error, error) {

	switch cfg.LegacyBackend {

	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, nil, err
		}

		logger.Info("legacy directory ready", map[string]any{"backend": "postgres"})

		return legacy.NewPostgresDirectory(sqlDB), sqlDB.Close, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, nil, err
		}

		logger.Info("legacy directory ready", map[string]any{"backend": "redis"})

		return legacy.NewRedisDirectory(client), client.Close, nil

	case "memory":
		directory := legacy.NewMemoryDirectory()

		if cfg.LegacySeedFile != "" {
			data, err := os.ReadFile(cfg.LegacySeedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read legacy seed file: %w", err)
			}

			var records []legacy.Record
			if err := json.Unmarshal(data, &records); err != nil {
				return nil, nil, fmt.Errorf("failed to parse legacy seed file: %w", err)
			}

			for _, r := range records {
				directory.Add(r)
			}

			logger.Info("legacy directory seeded", map[string]any{
				"backend": "memory",
				"users":   len(records),
			})
		}

		return directory, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown legacy backend: %s", cfg.LegacyBackend)
	}
}
