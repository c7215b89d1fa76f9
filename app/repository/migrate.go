package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded schema for driver ("mysql" or "sqlite3").
// Statements are idempotent.
func Migrate(ctx context.Context, db DBTX, driverName string) error {
	raw, err := schemaFS.ReadFile("schema/" + driverName + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %q: %w", driverName, err)
	}

	for _, statement := range strings.Split(string(raw), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
