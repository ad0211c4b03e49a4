// Package sqlite provides the modernc.org/sqlite backed puzzle driver.
//
// It reads the prebuilt Lichess puzzle database as published (column names
// follow the Lichess CSV header) and can provision a fresh database through
// the embedded goose migrations.
package sqlite
