package dotlite

import (
	"github.com/pkg/errors"
)

// Sentinel errors for each of the error kinds the file-format engine can
// raise. Callers should use errors.Is against these, since most returned
// errors are wrapped with github.com/pkg/errors for additional context.
var (
	// ErrBadMagic is returned by Open when the 16-byte file signature does
	// not match the SQLite magic string.
	ErrBadMagic = errors.New("dotlite: bad file magic")

	// ErrBadFileSize is returned by Open when the file length is not a
	// whole multiple of the page size.
	ErrBadFileSize = errors.New("dotlite: file size is not a multiple of the page size")

	// ErrMalformedRecord is returned while decoding a record or varint that
	// is truncated or uses a reserved serial type code.
	ErrMalformedRecord = errors.New("dotlite: malformed record")

	// ErrMalformedPage is returned when an internal page invariant is
	// violated while parsing a cell. It should never surface in practice;
	// it exists as a defensive backstop against a corrupt file.
	ErrMalformedPage = errors.New("dotlite: malformed page")

	// ErrDuplicate is returned by Insert when the target rowid already
	// exists in the table.
	ErrDuplicate = errors.New("dotlite: row already exists")

	// ErrNotFound is returned by DeleteByRowid/UpdateByRowid when the
	// target rowid does not exist.
	ErrNotFound = errors.New("dotlite: row not found")

	// ErrBadIndexKeys is returned by FilterByIndex when more key values are
	// supplied than the index has columns, and by GetByPK when an INTEGER
	// primary key is given a value that is not an int64.
	ErrBadIndexKeys = errors.New("dotlite: index key columns do not match")

	// ErrValueOverflow is returned when encoding an integer field whose
	// value falls outside the encodable signed 64-bit range.
	ErrValueOverflow = errors.New("dotlite: integer value overflow")
)

// wrapf annotates err with a formatted message while preserving the
// sentinel it wraps for errors.Is/errors.As.
func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
