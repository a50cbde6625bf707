// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeddb

import (
	"context"
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// FeedDB is the durable store of the feeds core, the source of truth
// every overlay read reconciles against.
type FeedDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens the feed db at the given path.
func New(path string) (feedDB *FeedDB, err error) {
	db, err := sql.Open("sqlite3", path+"?_journal=wal&_fk=true")
	if err != nil {
		return nil, err
	}
	defer func() {
		if feedDB == nil {
			db.Close()
		}
	}()

	// the writable unit of work serializes per-feed writers; a single
	// connection keeps sqlite's own locking out of the picture.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(allTablesSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &FeedDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem creates a feed db in ram.
func NewMem() (*FeedDB, error) {
	return New(":memory:")
}

// Close closes the feed db.
func (db *FeedDB) Close() {
	db.db.Close()
}

func (db *FeedDB) Path() string {
	return db.path
}

// queryer is satisfied by both *sql.DB and *sql.Tx so read queries can
// run either standalone or inside a unit of work.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader answers read queries over a stale-but-consistent snapshot.
type Reader struct {
	q queryer
}

// CreateReadOnly returns a read-only view of the store.
func (db *FeedDB) CreateReadOnly() *Reader {
	return &Reader{q: db.db}
}

// UnitOfWork wraps all mutations of one transaction handler in a
// single commit. Rollback on any error; a method that neither commits
// nor rolls back leaks the tx, so callers defer Rollback.
type UnitOfWork struct {
	Reader
	tx   *sql.Tx
	done bool
}

// CreateWritable opens a writable unit of work.
func (db *FeedDB) CreateWritable(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin unit of work")
	}
	return &UnitOfWork{Reader: Reader{q: tx}, tx: tx}, nil
}

// Commit makes the unit of work durable.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	return u.tx.Commit()
}

// Rollback abandons the unit of work. Safe to defer after Commit.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	u.done = true
	u.tx.Rollback()
}
