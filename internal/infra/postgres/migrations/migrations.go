// Package migrations holds the bun migrations for the Postgres schema.
// Each migration registers itself from a file named <timestamp>_<name>.go.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
