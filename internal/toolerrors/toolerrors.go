// Package toolerrors collects the error taxonomy shared across the slice
// extractor, signature purger and execution-results summarizer, mirroring
// the Error enum the reference implementation defines per subcommand.
package toolerrors

import (
	"errors"
	"fmt"

	"github.com/go-node-tools/dbmaint/internal/records"
)

// ParsingError reports a structured payload that failed to deserialize out
// of a named sub-database for a given block.
type ParsingError struct {
	BlockHash records.BlockHash
	DBName    string
	Cause     error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing %s for block %s: %v", e.DBName, e.BlockHash, e.Cause)
}
func (e *ParsingError) Unwrap() error { return e.Cause }

// HeaderParsingError specializes ParsingError for block_header.
type HeaderParsingError struct {
	BlockHash records.BlockHash
	Cause     error
}

func (e *HeaderParsingError) Error() string {
	return fmt.Sprintf("parsing header for block %s: %v", e.BlockHash, e.Cause)
}
func (e *HeaderParsingError) Unwrap() error { return e.Cause }

// SignaturesParsingError specializes ParsingError for block_metadata.
type SignaturesParsingError struct {
	BlockHash records.BlockHash
	Cause     error
}

func (e *SignaturesParsingError) Error() string {
	return fmt.Sprintf("parsing signatures for block %s: %v", e.BlockHash, e.Cause)
}
func (e *SignaturesParsingError) Unwrap() error { return e.Cause }

// SerializeError reports a failure re-serializing a rewritten record.
type SerializeError struct {
	BlockHash records.BlockHash
	Cause     error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serializing signatures for block %s: %v", e.BlockHash, e.Cause)
}
func (e *SerializeError) Unwrap() error { return e.Cause }

// DuplicateBlockError reports two headers claiming the same target height.
type DuplicateBlockError struct{ Height uint64 }

func (e *DuplicateBlockError) Error() string {
	return fmt.Sprintf("duplicate block at height %d", e.Height)
}

// MissingEraWeightsError reports no switch block advertising weights for an
// era.
type MissingEraWeightsError struct{ EraID records.EraID }

func (e *MissingEraWeightsError) Error() string {
	return fmt.Sprintf("missing era weights for era %d", e.EraID)
}

// OutputError reports that a destination path already exists, or cannot be
// created.
type OutputError struct{ Cause error }

func (e *OutputError) Error() string { return fmt.Sprintf("output: %v", e.Cause) }
func (e *OutputError) Unwrap() error { return e.Cause }

// ErrEmptyDatabase and ErrEmptyBlockList report, at the subcommand level,
// that there is nothing to scan or purge: an empty block_header table, or
// empty purge height lists. They are distinct from the progress tracker's
// own zero-total refusal, progress.ErrEmptyTotal.
var (
	ErrEmptyDatabase = errors.New("empty database: nothing to scan")
	ErrEmptyBlockList = errors.New("empty block list: nothing to purge")
)
