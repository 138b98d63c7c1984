// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for all application tables. Statements are
// idempotent (IF NOT EXISTS) so re-running them is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
