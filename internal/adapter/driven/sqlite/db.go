// Package sqlite implements the local repository cache on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	_ "modernc.org/sqlite"
)

// DB holds separate writer and reader pools over one SQLite file in WAL mode.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the cache file at dbPath, creating it if needed, with WAL
// journaling, a 5s busy timeout, synchronous NORMAL and a 16MB page cache.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-16000)",
		dbPath,
	)
	return open(ctx, dsn, dbPath)
}

// Pool sizes. A single writer connection serializes write transactions;
// readers run alongside it under WAL.
const (
	writerConns = 1
	readerConns = 4
)

func open(ctx context.Context, dsn, path string) (*DB, error) {
	writer, err := openPool(ctx, dsn, writerConns)
	if err != nil {
		return nil, fmt.Errorf("opening cache writer %s: %w", path, err)
	}

	reader, err := openPool(ctx, dsn, readerConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("opening cache reader %s: %w", path, err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(ctx context.Context, dsn string, conns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(conns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes both pools and reports every failure.
func (db *DB) Close() error {
	var errs *multierror.Error
	if err := db.Reader.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing writer: %w", err))
	}
	return errs.ErrorOrNil()
}
