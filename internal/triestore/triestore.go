// Package triestore defines the narrow interface the slice extractor uses
// to copy a block's global-state subtree into a fresh destination. The
// actual trie engine (an embedded execution-engine store) lives outside
// this module's scope; only the interface it must satisfy is specified
// here, plus a constructor contract every real engine implementation is
// expected to provide.
package triestore

import (
	"fmt"

	"github.com/go-node-tools/dbmaint/internal/records"
)

// Store is the opaque handle the slice extractor copies a state root
// through. A real implementation wraps the node's embedded trie engine;
// tests substitute a fake that records calls.
type Store interface {
	// CopyStateRoot copies the transitive closure of the trie rooted at
	// root from src into the receiver (the destination store).
	CopyStateRoot(root records.Digest, src Store) error
	// Flush durably persists everything written so far.
	Flush() error
}

// LoadExecutionEngineError wraps a failure opening the source trie engine.
type LoadExecutionEngineError struct{ Cause error }

func (e *LoadExecutionEngineError) Error() string {
	return fmt.Sprintf("load execution engine: %v", e.Cause)
}
func (e *LoadExecutionEngineError) Unwrap() error { return e.Cause }

// CreateExecutionEngineError wraps a failure creating the destination trie
// engine.
type CreateExecutionEngineError struct{ Cause error }

func (e *CreateExecutionEngineError) Error() string {
	return fmt.Sprintf("create execution engine: %v", e.Cause)
}
func (e *CreateExecutionEngineError) Unwrap() error { return e.Cause }

// StateRootTransferError wraps a failure during CopyStateRoot itself.
type StateRootTransferError struct{ Cause error }

func (e *StateRootTransferError) Error() string {
	return fmt.Sprintf("state root transfer: %v", e.Cause)
}
func (e *StateRootTransferError) Unwrap() error { return e.Cause }

// Opener constructs the source and destination stores for a single slice
// extraction. A production binary supplies an Opener backed by the node's
// real global-state engine; this toolkit never opens that engine directly.
type Opener interface {
	Load(dir string) (Store, error)
	Create(dir string) (Store, error)
}

// TransferGlobalState copies the subtree rooted at stateRoot from the
// engine at sourceDir into a fresh engine at destDir, then flushes the
// destination. This is the only place C4 is invoked from.
func TransferGlobalState(opener Opener, sourceDir, destDir string, stateRoot records.Digest) error {
	src, err := opener.Load(sourceDir)
	if err != nil {
		return &LoadExecutionEngineError{Cause: err}
	}
	dst, err := opener.Create(destDir)
	if err != nil {
		return &CreateExecutionEngineError{Cause: err}
	}
	if err := dst.CopyStateRoot(stateRoot, src); err != nil {
		return &StateRootTransferError{Cause: err}
	}
	if err := dst.Flush(); err != nil {
		return &StateRootTransferError{Cause: err}
	}
	return nil
}
