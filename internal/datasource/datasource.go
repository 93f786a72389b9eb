// Package datasource defines where survey bytes come from. Implementations
// live in file (local disk), httpds (HTTP with retry) and the objectstore
// package (S3/MinIO objects).
package datasource

import (
	"context"
	"io"
)

// Source opens a byte stream. The caller closes it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Named is implemented by sources that know the file name behind the bytes.
// The tabular reader dispatches on its extension.
type Named interface {
	Source
	Name() string
}
