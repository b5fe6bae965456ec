// Package dbmigrations exposes embedded SQL migrations for catalog binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into catalog binaries.
//
//go:embed *.sql
var Files embed.FS
