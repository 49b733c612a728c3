// Package purge implements the finality-signature purger (C6): building the
// height and switch-block indices in a single pass, resolving per-era
// validator weights lazily, running the greedy smallest-first stripping
// algorithm, and rewriting block_metadata in place.
package purge

import (
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
)

// HeightEntry is what the index build records for each caller-requested
// height: the block it resolved to and that block's era (needed to detect
// the genesis guard before ever touching block_metadata).
type HeightEntry struct {
	BlockHash records.BlockHash
	EraID     records.EraID
}

// Indices is the result of a single forward scan over block_header.
type Indices struct {
	// Heights is restricted to the union of the caller's weak-finality and
	// no-finality height sets — this purger never needs to remember every
	// height in the database, only the ones it was asked to touch.
	Heights map[uint64]HeightEntry
	// SwitchBlocks maps era e+1 to the hash of the switch block that closed
	// era e and advertised e+1's validator weights.
	SwitchBlocks map[records.EraID]records.BlockHash
	// SwitchBlocksBeforeUpgrade holds, for every protocol version other
	// than the highest one observed in the scan, the height of that
	// version's last (highest) switch block — its advertised weights may not
	// reflect the validator set active deep into the post-upgrade era.
	SwitchBlocksBeforeUpgrade map[uint64]bool
}

// InitializeIndices performs the single required read-only scan over
// block_header, restricting the height index to targetHeights while still
// observing every switch block to build the era-weights and upgrade
// indices.
func InitializeIndices(tx kv.Tx, targetHeights map[uint64]struct{}, logger *zap.Logger) (*Indices, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Indices{
		Heights:                   make(map[uint64]HeightEntry),
		SwitchBlocks:              make(map[records.EraID]records.BlockHash),
		SwitchBlocksBeforeUpgrade: make(map[uint64]bool),
	}
	versionMaxHeight := make(map[records.ProtocolVersion]uint64)

	cur, err := tx.Cursor(kv.BlockHeader)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	count := 0
	key, value, err := cur.First()
	if err != nil {
		return nil, err
	}
	for key != nil {
		count++
		blockHash, err := records.NewDigest(key)
		if err != nil {
			logger.Warn("skipping malformed key in block_header", zap.Int("index", count-1), zap.Error(err))
			key, value, err = cur.Next()
			if err != nil {
				return nil, err
			}
			continue
		}
		header, err := records.DecodeBlockHeader(value)
		if err != nil {
			return nil, &toolerrors.HeaderParsingError{BlockHash: records.BlockHash(blockHash), Cause: err}
		}

		if _, wanted := targetHeights[header.Height]; wanted {
			if existing, ok := idx.Heights[header.Height]; ok && existing.BlockHash != records.BlockHash(blockHash) {
				return nil, &toolerrors.DuplicateBlockError{Height: header.Height}
			}
			idx.Heights[header.Height] = HeightEntry{BlockHash: records.BlockHash(blockHash), EraID: header.EraID}
		}

		if header.IsSwitchBlock {
			idx.SwitchBlocks[header.EraID.Successor()] = records.BlockHash(blockHash)
			if h, ok := versionMaxHeight[header.ProtocolVersion]; !ok || header.Height > h {
				versionMaxHeight[header.ProtocolVersion] = header.Height
			}
		}

		key, value, err = cur.Next()
		if err != nil {
			return nil, err
		}
	}
	if count == 0 {
		return nil, toolerrors.ErrEmptyDatabase
	}

	var highest records.ProtocolVersion
	first := true
	for v := range versionMaxHeight {
		if first || highest.Less(v) {
			highest = v
			first = false
		}
	}
	for v, h := range versionMaxHeight {
		if v == highest {
			continue
		}
		idx.SwitchBlocksBeforeUpgrade[h] = true
		logger.Info("switch block precedes a protocol upgrade",
			zap.Uint64("height", h), zap.Stringer("version", v), zap.Stringer("current_version", highest))
	}

	logger.Info("indexed block headers", zap.Int("count", count), zap.Int("switch_blocks", len(idx.SwitchBlocks)))
	return idx, nil
}
