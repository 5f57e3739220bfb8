// Package migrations embeds the golang-migrate SQL files for the Postgres store.
package migrations

import "embed"

// FS contains the versioned up/down migrations.
//
//go:embed *.sql
var FS embed.FS
