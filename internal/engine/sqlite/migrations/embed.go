// Package migrations embeds the schema migrations for the sqlite engine.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
