// Package memkv is an in-memory stand-in for the mdbx-backed store, used by
// unit tests that exercise the slicer, purger and summarizer without paying
// for a real on-disk environment. It honors the same single-writer
// semantics as kv.DB: only one RwTx may be outstanding at a time.
package memkv

import (
	"sort"
	"sync"

	"github.com/go-node-tools/dbmaint/internal/kv"
)

// New returns an empty in-memory DB with the given tables pre-declared.
func New(tables ...string) *DB {
	db := &DB{tables: make(map[string]map[string][]byte)}
	for _, t := range tables {
		db.tables[t] = make(map[string][]byte)
	}
	return db
}

// DB is a map-of-maps store guarded by a single mutex, matching the
// "only one RW transaction open at a time per environment" resource model.
type DB struct {
	mu     sync.Mutex
	tables map[string]map[string][]byte
}

func (d *DB) CreateTable(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; ok {
		return nil
	}
	d.tables[name] = make(map[string][]byte)
	return nil
}

func (d *DB) BeginRO() (kv.RoTx, error) {
	d.mu.Lock()
	return &tx{db: d, ro: true}, nil
}

func (d *DB) BeginRW() (kv.RwTx, error) {
	d.mu.Lock()
	return &tx{db: d, ro: false}, nil
}

func (d *DB) Close() error { return nil }

type tx struct {
	db       *DB
	ro       bool
	done     bool
	writeSet map[string]map[string][]byte
	delSet   map[string]map[string]struct{}
}

func (t *tx) table(name string) (map[string][]byte, error) {
	tbl, ok := t.db.tables[name]
	if !ok {
		return nil, &kv.KVError{Op: "open", Table: name, Cause: kv.ErrKeyNotFound}
	}
	return tbl, nil
}

func (t *tx) Get(table string, key []byte) ([]byte, error) {
	tbl, err := t.table(table)
	if err != nil {
		return nil, err
	}
	if !t.ro {
		if dels, ok := t.delSet[table]; ok {
			if _, deleted := dels[string(key)]; deleted {
				return nil, kv.ErrKeyNotFound
			}
		}
		if writes, ok := t.writeSet[table]; ok {
			if v, ok := writes[string(key)]; ok {
				return v, nil
			}
		}
	}
	v, ok := tbl[string(key)]
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return v, nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	tbl, err := t.table(table)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &cursor{tbl: tbl, keys: keys}, nil
}

func (t *tx) EntryCount(table string) (int, bool) {
	tbl, err := t.table(table)
	if err != nil {
		return 0, false
	}
	return len(tbl), true
}

func (t *tx) Put(table string, key, value []byte) error {
	if t.ro {
		return &kv.KVError{Op: "put", Table: table, Cause: kv.ErrKeyNotFound}
	}
	if _, err := t.table(table); err != nil {
		return err
	}
	if t.writeSet == nil {
		t.writeSet = make(map[string]map[string][]byte)
	}
	if t.writeSet[table] == nil {
		t.writeSet[table] = make(map[string][]byte)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	t.writeSet[table][string(key)] = cp
	if t.delSet != nil && t.delSet[table] != nil {
		delete(t.delSet[table], string(key))
	}
	return nil
}

func (t *tx) Delete(table string, key []byte) error {
	if t.ro {
		return &kv.KVError{Op: "delete", Table: table, Cause: kv.ErrKeyNotFound}
	}
	if _, err := t.table(table); err != nil {
		return err
	}
	if t.delSet == nil {
		t.delSet = make(map[string]map[string]struct{})
	}
	if t.delSet[table] == nil {
		t.delSet[table] = make(map[string]struct{})
	}
	t.delSet[table][string(key)] = struct{}{}
	if t.writeSet != nil && t.writeSet[table] != nil {
		delete(t.writeSet[table], string(key))
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	defer t.finish()
	for table, writes := range t.writeSet {
		for k, v := range writes {
			t.db.tables[table][k] = v
		}
	}
	for table, dels := range t.delSet {
		for k := range dels {
			delete(t.db.tables[table], k)
		}
	}
	return nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.finish()
}

func (t *tx) finish() {
	t.done = true
	t.db.mu.Unlock()
}

type cursor struct {
	tbl  map[string][]byte
	keys []string
	pos  int
}

func (c *cursor) First() (key, value []byte, err error) {
	c.pos = 0
	return c.current()
}

func (c *cursor) Next() (key, value []byte, err error) {
	c.pos++
	return c.current()
}

func (c *cursor) current() ([]byte, []byte, error) {
	if c.pos >= len(c.keys) {
		return nil, nil, nil
	}
	k := c.keys[c.pos]
	return []byte(k), c.tbl[k], nil
}

func (c *cursor) Close() {}
