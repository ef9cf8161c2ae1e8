package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// Migrate applies the schema. Every statement is idempotent.
// Exec without arguments runs over the simple protocol, which accepts
// several statements in one call.
func Migrate(ctx context.Context, conn DBTX) error {
	if _, err := conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
