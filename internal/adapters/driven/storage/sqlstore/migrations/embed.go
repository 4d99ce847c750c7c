// Package migrations embeds SQL migration files for the relational store.
// The SQL is written in the subset shared by SQLite and PostgreSQL.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
