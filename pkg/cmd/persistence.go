package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/persistence/memory"
	"github.com/caseflowhq/caseflow/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// is the production backend; memory:// serves local development
// and loses everything on restart.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	case strings.HasPrefix(databaseURL, "memory://"):
		logger.Warn("Using in-memory persistence, data will not survive restarts")

		return memory.NewPersistence()
	default:
		panic("unsupported database URL: " + databaseURL)
	}
}
