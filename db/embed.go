// Package db embeds the schema migrations.
package db

import "embed"

// Migrations holds the versioned SQL files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS
