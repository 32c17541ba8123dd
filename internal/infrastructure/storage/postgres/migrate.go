package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"facturation/pkg/logger"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the bundled schema scripts in file name order.
// Scripts are idempotent (IF NOT EXISTS), so Migrate may run on every start.
func Migrate(ctx context.Context, txm *TxManager) error {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(files)

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, name := range files {
			script, err := schemaFS.ReadFile(name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if _, err := txm.GetQuerier(ctx).Exec(ctx, string(script)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			logger.Debug(ctx, "schema applied", "file", name)
		}
		return nil
	})
}
