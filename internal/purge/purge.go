package purge

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/progress"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
)

// PurgeSignaturesForBlocks rewrites block_metadata for each requested
// height, visited in ascending order for determinism: a full purge
// (weak=false) deletes the record outright; a weak purge (weak=true)
// strips signatures down to the smallest set still reaching weak finality
// and rewrites the trimmed record. Missing blocks, the genesis era (which
// carries no signatures), and missing signature records are logged and
// skipped, never treated as failures.
func PurgeSignaturesForBlocks(tx kv.RwTx, indices *Indices, weights *EraWeights, heights []uint64, weak bool, tracker *progress.Tracker, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := append([]uint64(nil), heights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, height := range sorted {
		entry, ok := indices.Heights[height]
		if !ok {
			logger.Warn("no block at requested height, skipping", zap.Uint64("height", height))
			advance(tracker)
			continue
		}
		if entry.EraID.IsGenesis() {
			logger.Warn("cannot strip signatures for genesis, skipping", zap.Uint64("height", height))
			advance(tracker)
			continue
		}
		blockHash := entry.BlockHash

		raw, err := tx.Get(kv.BlockMetadata, blockHash.Bytes())
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				logger.Warn("no signatures found for block, skipping",
					zap.Uint64("height", height), zap.Stringer("block_hash", blockHash))
				advance(tracker)
				continue
			}
			return err
		}

		sigs, err := records.DecodeBlockSignatures(raw)
		if err != nil {
			return &toolerrors.SignaturesParsingError{BlockHash: blockHash, Cause: err}
		}

		if !weak {
			if err := tx.Delete(kv.BlockMetadata, blockHash.Bytes()); err != nil {
				return err
			}
			logger.Info("deleted signatures", zap.Uint64("height", height))
			advance(tracker)
			continue
		}

		wm, staleWeights, err := weights.WeightsFor(sigs.EraID)
		if err != nil {
			return err
		}

		_, changed := StripSignatures(sigs.Proofs, *wm, wm.Total())
		if changed {
			rawOut, err := records.EncodeBlockSignatures(sigs)
			if err != nil {
				return &toolerrors.SerializeError{BlockHash: blockHash, Cause: err}
			}
			if err := tx.Put(kv.BlockMetadata, blockHash.Bytes(), rawOut); err != nil {
				return err
			}
			logger.Info("stripped signatures", zap.Uint64("height", height), zap.Int("retained", sigs.Proofs.Len()))
		} else {
			logger.Warn("couldn't strip signatures, leaving untouched", zap.Uint64("height", height))
		}
		if staleWeights {
			logger.Warn("era weights used may be inaccurate: advertised by a switch block preceding a protocol upgrade",
				zap.Uint64("era", uint64(sigs.EraID)), zap.Uint64("height", height))
		}
		advance(tracker)
	}
	return nil
}

func advance(t *progress.Tracker) {
	if t != nil {
		t.AdvanceBy(1)
	}
}

// heightSet builds the union of two height lists as a lookup set, the
// restriction InitializeIndices applies to its Heights index.
func heightSet(a, b []uint64) map[uint64]struct{} {
	out := make(map[uint64]struct{}, len(a)+len(b))
	for _, h := range a {
		out[h] = struct{}{}
	}
	for _, h := range b {
		out[h] = struct{}{}
	}
	return out
}

// PurgeSignatures builds the height/switch-block indices restricted to the
// union of weakHeights and fullHeights, then runs a weak-purge pass over
// weakHeights followed by a full-purge pass over fullHeights. The two sets
// are not deduplicated against each other — a height named in both is
// weak-purged then immediately fully deleted, full-purge winning, matching
// the reference tool's sequential-phase behavior.
func PurgeSignatures(tx kv.RwTx, weakHeights, fullHeights []uint64, logger *zap.Logger) error {
	if len(weakHeights) == 0 && len(fullHeights) == 0 {
		return toolerrors.ErrEmptyBlockList
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	indices, err := InitializeIndices(tx, heightSet(weakHeights, fullHeights), logger)
	if err != nil {
		return err
	}
	weights := NewEraWeights(tx, indices)

	if len(weakHeights) > 0 {
		tracker, err := progress.New(uint64(len(weakHeights)), func(pct uint64) {
			logger.Info("signature purging to weak finality", zap.Uint64("percent", pct))
		}, logger)
		if err != nil {
			return err
		}
		if err := PurgeSignaturesForBlocks(tx, indices, weights, weakHeights, true, tracker, logger); err != nil {
			return err
		}
	}
	if len(fullHeights) > 0 {
		tracker, err := progress.New(uint64(len(fullHeights)), func(pct uint64) {
			logger.Info("signature purging to no finality", zap.Uint64("percent", pct))
		}, logger)
		if err != nil {
			return err
		}
		if err := PurgeSignaturesForBlocks(tx, indices, weights, fullHeights, false, tracker, logger); err != nil {
			return err
		}
	}
	return nil
}
