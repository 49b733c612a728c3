// Package kv defines the narrow transactional key-value interface every
// subsystem in this toolkit programs against, mirroring the split Erigon
// draws between kv.RoDB/kv.RwDB and kv.Tx/kv.RwTx. Two implementations
// satisfy it: mdbxkv (the real on-disk engine, backed by
// github.com/erigontech/mdbx-go) and memkv (an in-memory double used by
// tests).
package kv

import "errors"

// Table names, stable across the on-disk format.
const (
	BlockHeader    = "block_header"
	BlockBody      = "block_body"
	Deploy         = "deploy"
	Transfer       = "transfer"
	DeployMetadata = "deploy_metadata"
	BlockMetadata  = "block_metadata"
)

// StorageFileName is the on-disk name of the environment file within a node
// directory.
const StorageFileName = "storage.lmdb"

// AllTables lists every sub-database of a node's storage environment.
var AllTables = []string{BlockHeader, BlockBody, Deploy, Transfer, DeployMetadata, BlockMetadata}

// SliceDestinationTables lists the subset of AllTables the slice extractor
// actually writes into. block_metadata is deliberately excluded: a slice
// exposes no signatures (see invariant 1 in the testable-properties list).
var SliceDestinationTables = []string{BlockHeader, BlockBody, Deploy, Transfer, DeployMetadata}

// ErrKeyNotFound is returned by Get when the key is absent from the table.
var ErrKeyNotFound = errors.New("kv: key not found")

// ErrAlreadyExists is returned by DB.Open-style constructors when the
// destination path already exists. CreateTable on an existing table is not
// an error.
var ErrAlreadyExists = errors.New("kv: already exists")

// KVError wraps any failure surfaced by the underlying store. Op identifies
// the failing operation (e.g. "get", "put", "cursor", "commit") for logging.
type KVError struct {
	Op    string
	Table string
	Cause error
}

func (e *KVError) Error() string {
	if e.Table != "" {
		return "kv: " + e.Op + " on " + e.Table + ": " + e.Cause.Error()
	}
	return "kv: " + e.Op + ": " + e.Cause.Error()
}

func (e *KVError) Unwrap() error { return e.Cause }

// Cursor walks a table's entries in key order.
type Cursor interface {
	// First positions the cursor at the first key and returns it, or
	// (nil, nil, nil) if the table is empty.
	First() (key, value []byte, err error)
	// Next advances the cursor, returning (nil, nil, nil) at end of table.
	Next() (key, value []byte, err error)
	// Close releases cursor resources.
	Close()
}

// Tx is the read-only transaction surface.
type Tx interface {
	// Get retrieves a value, returning ErrKeyNotFound if absent.
	Get(table string, key []byte) ([]byte, error)
	// Cursor opens a read-order cursor over table.
	Cursor(table string) (Cursor, error)
	// EntryCount reports the exact number of entries in table, or false if
	// the backend cannot report this cheaply.
	EntryCount(table string) (int, bool)
	// Rollback releases the transaction without committing. Safe to call
	// after Commit (no-op).
	Rollback()
}

// RwTx is the read-write transaction surface.
type RwTx interface {
	Tx
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	// Commit finalizes all writes made through this transaction.
	Commit() error
}

// RoTx is a read-only transaction that must eventually Commit (releasing
// the MVCC snapshot, per the underlying store's terminology) or Rollback.
type RoTx interface {
	Tx
	Commit() error
}

// DB is an open environment (one on-disk storage.lmdb file, or an in-memory
// stand-in in tests).
type DB interface {
	BeginRO() (RoTx, error)
	BeginRW() (RwTx, error)
	// CreateTable declares a named sub-database. Must be called before any
	// transaction referencing it is opened; used only during slicer
	// destination setup.
	CreateTable(name string) error
	Close() error
}
