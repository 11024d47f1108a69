// Package cmd provides shared wiring helpers for the binaries: persistence
// selection, event bus construction, and collaborator clients.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/persistence/postgresql"
	"github.com/flowgrid/flowgrid/pkg/persistence/redis"
)

// NewPersistence creates the persistence backend from the database URL
// scheme. An optional Redis URL redirects execution records to Redis while
// the chosen backend keeps workflows and templates.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL, redisURL string) (persistence.Persistence, error) {
	var (
		base persistence.Persistence
		err  error
	)

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		base, err = postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}
	default:
		base = file.NewPersistence(databaseURL)
	}

	if redisURL == "" {
		return base, nil
	}

	executions, err := redis.NewExecutionRepository(redisURL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "execution records stored in redis")

	return persistence.WithExecutionRepository(base, executions), nil
}
