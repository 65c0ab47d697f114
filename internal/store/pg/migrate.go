package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	migrations "github.com/dropDatabas3/fedbroker/migrations/postgres"
)

// Migrate aplica las migraciones embebidas en orden lexicográfico. Los
// statements son idempotentes (IF NOT EXISTS), así que correr dos veces es
// seguro.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.BrokerFS, migrations.BrokerDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(migrations.BrokerFS, migrations.BrokerDir+"/"+name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}
