package storage

import (
	"errors"
	"fmt"
)

// ErrNoKeyColumns is returned by Upsert when no key columns are given.
var ErrNoKeyColumns = errors.New("storage: key columns must not be empty")

// TableNotFoundError is returned when the target table is absent and
// creation is disabled, or when reading a table that does not exist.
type TableNotFoundError struct {
	Schema string
	Table  string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("storage: table %s not found", Name{Schema: e.Schema, Table: e.Table})
}

// UnknownBackendError is returned by New for unregistered kinds.
type UnknownBackendError struct {
	Kind string
}

func (e *UnknownBackendError) Error() string {
	return "unsupported storage.kind=" + e.Kind
}
