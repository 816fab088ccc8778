// Package migrations embeds the local sqlite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
