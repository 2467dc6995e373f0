// Package migrations embeds the address service SQL migrations.
package migrations

import "embed"

// FS holds every migration file. Only *.up.sql files are applied.
//
//go:embed *.sql
var FS embed.FS
