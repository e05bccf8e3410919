// Package migrations embeds the SQLite schema of the local attempt journal.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
