package reader

import "fmt"

// UnsupportedFormatError reports a source whose extension has no parser.
type UnsupportedFormatError struct {
	Source string
	Ext    string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("reader: %s has no file extension", e.Source)
	}
	return fmt.Sprintf("reader: unsupported format %q for %s", e.Ext, e.Source)
}

// EmptySourceError reports a source that parsed to zero rows.
type EmptySourceError struct {
	Source string
}

func (e *EmptySourceError) Error() string {
	return fmt.Sprintf("reader: %s has no data rows", e.Source)
}
