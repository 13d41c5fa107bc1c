package migrations

import (
	"context"
	"fmt"

	"solana-token-craft/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded record store schema in lexical order.
// Every script is idempotent, so the call is safe on an already migrated database.
// Returns the names of the applied scripts.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	scripts, err := PostgresScripts()
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(scripts))
	for _, s := range scripts {
		if _, err := pool.Exec(ctx, s.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", s.Name, err)
		}
		applied = append(applied, s.Name)
	}
	return applied, nil
}
