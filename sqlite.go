package dotlite

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"go.riyazali.net/dotlite/internal/dlog"
)

// Magic is the 16-byte constant magic value used by sqlite3
const Magic = "SQLite format 3\x00"

// TextEncoding represents the database text encoding
type TextEncoding int32

const (
	_ TextEncoding = iota
	UTF8
	UTF16LE
	UTF16BE
)

// Header describes the sqlite3 database header as defined under https://www.sqlite.org/fileformat.html#the_database_header
type Header struct {
	Magic           [16]byte
	PageSize        uint16  // the database page size in bytes
	WriteVersion    byte    // file format write version
	ReadVersion     byte    // file format read version
	PageReserved    byte    // bytes of unused reserved space at the end of each page; usually 0
	MaxEmbeddedFrac byte    // maximum embedded payload fraction. Must be 64
	MinEmbeddedFrac byte    // minimum embedded payload fraction. Must be 32
	LeafFrac        byte    // leaf payload fraction (must be 32)
	ChangeCounter   int32   // file change counter
	Size            int32   // size of the database file in pages
	FreePage        int32   // page number of the first freelist trunk page
	TotalFreePages  int32   // total number of freelist pages
	SchemaCookie    [4]byte // the schema cookie
	SchemaFormat    int32   // the schema format number. Supported schema formats are 1, 2, 3, and 4.
	PageCacheSize   int32   // default page cache size
	AutoVacuum      int32   // page number of the largest root b-tree page when in auto-vacuum or incremental-vacuum modes, or zero otherwise.
	TextEncoding    TextEncoding
	UserVersion     int32 // the "user version" as read and set by the user_version PRAGMA
	IncrVacuum      int32 // True (non-zero) for incremental-vacuum mode. False (zero) otherwise
	ApplicationID   int32 // the "Application ID" set by the PRAGMA application_id

	_ [20]byte // reserved for expansion. Must be zero.

	VersionValid   int32 // the version-valid-for number; see: https://www.sqlite.org/fileformat2.html#validfor
	LibraryVersion int32
}

// Valid validates the header ensuring it is well-formed and correct.
func (h *Header) Valid() error {
	if string(h.Magic[:]) != Magic {
		return wrapf(ErrBadMagic, "got %q", h.Magic[:])
	}

	// ensure file can be read
	if h.ReadVersion > 2 {
		return fmt.Errorf("dotlite: file not readable by current version of library")
	}

	// Ensure reserved space at the end of the page is valid.
	// The documentation states that "the usable size is not allowed to be less than 480 [bytes]"
	if usable := h.PageSize - uint16(h.PageReserved); usable < 480 {
		return fmt.Errorf("dotlite: invalid file: usable page size is less than allowed limit")
	}

	// ensure payload fraction values are fixed; see: https://www.sqlite.org/fileformat.html#payload_fractions
	if h.MaxEmbeddedFrac != 64 || h.MinEmbeddedFrac != 32 || h.LeafFrac != 32 {
		return fmt.Errorf("dotlite: invalid payload fractions")
	}

	return nil
}

// File represents a sqlite3 database file, opened either for read-only
// traversal or for read/write mutation via the top-level Database API.
type File struct {
	Header Header // sqlite3 database header; see: https://www.sqlite.org/fileformat.html#the_database_header

	//-  start of internal state
	closer io.Closer
	Pager  *Pager // pager used to fetch/allocate pages
}

// OpenOption configures a File at open time.
type OpenOption func(*openConfig)

type openConfig struct {
	readOnly bool
}

// ReadOnly opens the file without permitting Flush; any attempted commit
// fails with an I/O error instead of silently succeeding.
func ReadOnly() OpenOption {
	return func(c *openConfig) { c.readOnly = true }
}

// Open reads the stream from f as a sqlite database file.
func Open(f ReadWriteSeekCloser, opts ...OpenOption) (_ *File, err error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var header Header
	if err = binary.Read(f, binary.BigEndian, &header); err != nil {
		return nil, wrapf(err, "read file header")
	}

	if err = header.Valid(); err != nil {
		return nil, err
	}

	// determine database size (in pages) if any of this condition is met
	// see: https://www.sqlite.org/fileformat.html#in_header_database_size
	if header.Size == 0 || (header.ChangeCounter != header.VersionValid) {
		var size int64
		if size, err = f.Seek(0, io.SeekEnd); err != nil {
			return nil, err
		}
		if _, err = f.Seek(0, io.SeekStart); err != nil { // reset
			return nil, err
		}

		if size%int64(header.PageSize) != 0 {
			return nil, wrapf(ErrBadFileSize, "file size %d is not a multiple of page size %d", size, header.PageSize)
		}
		header.Size = int32(size / int64(header.PageSize))
	}

	// pager is used to fetch, allocate and flush pages of data from the
	// database file; other high-level constructs (free-list, b-tree,
	// schema) build on top of it.
	var pager = newPager(f, int(header.PageSize), int(header.Size), cfg.readOnly)

	var file = &File{Header: header, Pager: pager, closer: f}
	dlog.Info("dotlite: opened file", "pages", file.NumPages(), "pageSize", file.PageSize(), "readOnly", cfg.readOnly)
	return file, nil
}

// OpenFile opens the named file read/write.
func OpenFile(name string, opts ...OpenOption) (_ *File, err error) {
	var file *os.File
	if file, err = os.OpenFile(name, os.O_RDWR, 0); err != nil {
		return nil, err
	}
	return Open(file, opts...)
}

// OpenFileReadOnly opens the named file read-only; any later Commit fails.
func OpenFileReadOnly(name string) (_ *File, err error) {
	var file *os.File
	if file, err = os.Open(name); err != nil {
		return nil, err
	}
	return Open(file, ReadOnly())
}

// NumPages returns the number of pages in the database
func (f *File) NumPages() int { return f.Pager.NumPages() }

// PageSize returns the database page size in bytes
func (f *File) PageSize() int { return int(f.Header.PageSize) }

// Encoding returns the text encoding for this database
func (f *File) Encoding() TextEncoding { return f.Header.TextEncoding }

// Version returns the sqlite version number used to create this database
func (f *File) Version() int { return int(f.Header.LibraryVersion) }

// Commit flushes every dirty page to the underlying file. It fails if the
// file was opened with ReadOnly().
func (f *File) Commit() error { return f.Pager.Flush() }

// Rollback discards all pending in-memory mutations, re-deriving the
// logical page count from the file's current on-disk length.
func (f *File) Rollback() error { return f.Pager.Rollback() }

// Close closes the underlying file handle
func (f *File) Close() error { return f.closer.Close() }

// Schema returns a list of all tables and indexes found in the file.
// It parses sqlite_schema, the special b-tree rooted at page 1.
//
// see: https://www.sqlite.org/fileformat.html#storage_of_the_sql_database_schema
func (f *File) Schema() (_ []*Object, err error) {
	var tree = NewTree(f, 1)
	var schemaTable = NewObject("sqlite_schema", "table", "sqlite_schema",
		"CREATE TABLE sqlite_schema(type,name,tbl_name,rootpage,sql)", tree)

	var objects []*Object
	err = schemaTable.ForEach(func(record *Record) (err error) {
		var typ, _ = record.AsString(0)
		var name, _ = record.AsString(1)
		var tblName, _ = record.AsString(2)
		var root, _ = record.AsInt(3)
		var sql, _ = record.AsString(4)

		if typ == "table" || typ == "index" {
			objects = append(objects, NewObject(name, typ, tblName, sql, NewTree(f, root)))
		}

		return nil
	})

	return objects, err
}

// Object returns the schema object (table or index) with the given name.
func (f *File) Object(name string) (_ *Object, err error) {
	var objects []*Object
	if objects, err = f.Schema(); err != nil {
		return nil, err
	}

	for _, obj := range objects {
		if obj.Name() == name {
			return obj, nil
		}
	}

	return nil, wrapf(ErrNotFound, "object %q", name)
}

// ForEach iterates over every row of the named table, in rowid order.
func (f *File) ForEach(name string, fn func(*Record) error) (err error) {
	var table *Object
	if table, err = f.Object(name); err != nil {
		return err
	}
	return table.ForEach(fn)
}
