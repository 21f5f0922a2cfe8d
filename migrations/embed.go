// Package migrations embeds the Postgres schema applied by golang-migrate.
package migrations

import "embed"

// FS holds the NNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
