// Package mdbxkv is the production kv.DB implementation, backed by
// github.com/erigontech/mdbx-go's libmdbx bindings — the same engine
// Erigon itself uses for its primary chaindata environment. It maps the
// narrow kv.DB/Tx/Cursor surface onto mdbx's Env/Txn/Cursor types.
package mdbxkv

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/go-node-tools/dbmaint/internal/kv"
)

// DefaultMapSize is the maximum environment size mdbx will grow the backing
// file to. It is a map-size ceiling, not a pre-allocation: mdbx only uses as
// much disk as is actually written.
const DefaultMapSize = 1 << 40 // 1 TiB

// Open opens (or, if create is true, creates) the environment rooted at
// dir/storage.lmdb. When create is true, dir must not already exist.
func Open(dir string, create bool) (*DB, error) {
	if create {
		if _, err := os.Stat(dir); err == nil {
			return nil, kv.ErrAlreadyExists
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &kv.KVError{Op: "mkdir", Cause: err}
		}
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, &kv.KVError{Op: "new-env", Cause: err}
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(kv.AllTables))); err != nil {
		return nil, &kv.KVError{Op: "set-max-dbs", Cause: err}
	}
	if err := env.SetGeometry(-1, -1, DefaultMapSize, -1, -1, -1); err != nil {
		return nil, &kv.KVError{Op: "set-geometry", Cause: err}
	}

	flags := uint(mdbx.NoSubdir)
	storagePath := filepath.Join(dir, kv.StorageFileName)
	if err := env.Open(storagePath, flags, 0o644); err != nil {
		return nil, &kv.KVError{Op: "open", Cause: err}
	}
	return &DB{env: env}, nil
}

// DB wraps an *mdbx.Env.
type DB struct {
	env *mdbx.Env
}

func (d *DB) CreateTable(name string) error {
	txn, err := d.env.BeginTxn(nil, 0)
	if err != nil {
		return &kv.KVError{Op: "begin-rw", Table: name, Cause: err}
	}
	if _, err := txn.OpenDBISimple(name, mdbx.Create); err != nil {
		txn.Abort()
		return &kv.KVError{Op: "create-table", Table: name, Cause: err}
	}
	if err := txn.Commit(); err != nil {
		return &kv.KVError{Op: "commit", Table: name, Cause: err}
	}
	return nil
}

func (d *DB) BeginRO() (kv.RoTx, error) {
	txn, err := d.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, &kv.KVError{Op: "begin-ro", Cause: err}
	}
	return &tx{txn: txn, dbis: map[string]mdbx.DBI{}}, nil
}

func (d *DB) BeginRW() (kv.RwTx, error) {
	txn, err := d.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, &kv.KVError{Op: "begin-rw", Cause: err}
	}
	return &tx{txn: txn, dbis: map[string]mdbx.DBI{}}, nil
}

func (d *DB) Close() error {
	d.env.Close()
	return nil
}

type tx struct {
	txn    *mdbx.Txn
	dbis   map[string]mdbx.DBI
	closed bool
}

func (t *tx) dbi(table string) (mdbx.DBI, error) {
	if d, ok := t.dbis[table]; ok {
		return d, nil
	}
	d, err := t.txn.OpenDBISimple(table, 0)
	if err != nil {
		return 0, &kv.KVError{Op: "open-table", Table: table, Cause: err}
	}
	t.dbis[table] = d
	return d, nil
}

func (t *tx) Get(table string, key []byte) ([]byte, error) {
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(d, key)
	if err != nil {
		if errors.Is(err, mdbx.ErrNotFound) {
			return nil, kv.ErrKeyNotFound
		}
		return nil, &kv.KVError{Op: "get", Table: table, Cause: err}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *tx) Put(table string, key, value []byte) error {
	d, err := t.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(d, key, value, 0); err != nil {
		return &kv.KVError{Op: "put", Table: table, Cause: err}
	}
	return nil
}

func (t *tx) Delete(table string, key []byte) error {
	d, err := t.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Del(d, key, nil); err != nil {
		if errors.Is(err, mdbx.ErrNotFound) {
			return kv.ErrKeyNotFound
		}
		return &kv.KVError{Op: "delete", Table: table, Cause: err}
	}
	return nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	d, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(d)
	if err != nil {
		return nil, &kv.KVError{Op: "cursor", Table: table, Cause: err}
	}
	return &cursor{c: c}, nil
}

func (t *tx) EntryCount(table string) (int, bool) {
	d, err := t.dbi(table)
	if err != nil {
		return 0, false
	}
	stat, err := t.txn.Stat(d)
	if err != nil {
		return 0, false
	}
	return int(stat.Entries), true
}

func (t *tx) Commit() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.txn.Commit(); err != nil {
		return &kv.KVError{Op: "commit", Cause: err}
	}
	return nil
}

func (t *tx) Rollback() {
	if t.closed {
		return
	}
	t.closed = true
	t.txn.Abort()
}

type cursor struct {
	c *mdbx.Cursor
}

func (c *cursor) First() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.First)
	return fromCursorResult(k, v, err)
}

func (c *cursor) Next() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Next)
	return fromCursorResult(k, v, err)
}

func (c *cursor) Close() { c.c.Close() }

func fromCursorResult(k, v []byte, err error) ([]byte, []byte, error) {
	if err != nil {
		if errors.Is(err, mdbx.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, &kv.KVError{Op: "cursor-get", Cause: err}
	}
	return k, v, nil
}
