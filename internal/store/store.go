// Package store opens the record store and run history selected by
// configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/salesimport/internal/config"
	"github.com/JonMunkholm/salesimport/internal/core"
	"github.com/JonMunkholm/salesimport/internal/store/memory"
	"github.com/JonMunkholm/salesimport/internal/store/postgres"
)

// Stores bundles a backend with the history that records its runs.
type Stores struct {
	Backend core.Backend
	History core.History
	close   func()
}

// Close releases database connections, if any.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects the store named by cfg.Import.Store. With the postgres
// store and migrate set, pending migrations are applied first.
func Open(ctx context.Context, cfg *config.Config, migrate bool) (*Stores, error) {
	switch strings.ToLower(cfg.Import.Store) {
	case config.StoreMemory:
		slog.Warn("using in-memory store, records are lost on exit")
		return &Stores{Backend: memory.New(), History: memory.NewHistory()}, nil

	case config.StorePostgres, "":
		db, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
			slog.Info("database migrations applied")
		}
		return &Stores{Backend: db, History: db.History(), close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Import.Store)
	}
}
