// Package all wires every built-in storage backend into the storage
// registry. Importing it (as a blank import) runs the init functions that
// register:
//
//   - "postgres" (internal/storage/postgres)
//   - "sqlite"   (internal/storage/sqlite)
//   - "duckdb"   (internal/storage/duckdb)
//   - "mssql"    (internal/storage/mssql)
//
// Binaries that need only a subset can import the backends directly instead.
package all

import (
	_ "github.com/samvalverde/PAAA/internal/storage/duckdb"
	_ "github.com/samvalverde/PAAA/internal/storage/mssql"
	_ "github.com/samvalverde/PAAA/internal/storage/postgres"
	_ "github.com/samvalverde/PAAA/internal/storage/sqlite"
)
