package purge

import (
	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
)

// EraWeights lazily resolves and caches the validator weight map active
// during a given era: the NextEraValidatorWeights advertised by the switch
// block indexed under that era.
type EraWeights struct {
	tx      kv.Tx
	indices *Indices

	cache map[records.EraID]*records.WeightMap
	stale map[records.EraID]bool
}

// NewEraWeights constructs a cache-backed resolver over tx and the given
// indices. tx must remain open for the resolver's lifetime.
func NewEraWeights(tx kv.Tx, indices *Indices) *EraWeights {
	return &EraWeights{
		tx:      tx,
		indices: indices,
		cache:   make(map[records.EraID]*records.WeightMap),
		stale:   make(map[records.EraID]bool),
	}
}

// WeightsFor returns the weight map active during eraID, and whether the
// switch block that advertised those weights preceded a protocol upgrade —
// a signal callers surface as a warning, since weights spanning an upgrade
// boundary may not reflect the validator set that actually signed a block
// deep into the new era.
func (e *EraWeights) WeightsFor(eraID records.EraID) (*records.WeightMap, bool, error) {
	if wm, ok := e.cache[eraID]; ok {
		return wm, e.stale[eraID], nil
	}

	switchHash, ok := e.indices.SwitchBlocks[eraID]
	if !ok {
		return nil, false, &toolerrors.MissingEraWeightsError{EraID: eraID}
	}

	raw, err := e.tx.Get(kv.BlockHeader, switchHash.Bytes())
	if err != nil {
		return nil, false, err
	}
	header, err := records.DecodeBlockHeader(raw)
	if err != nil {
		return nil, false, &toolerrors.HeaderParsingError{BlockHash: switchHash, Cause: err}
	}
	if header.NextEraValidatorWeights == nil {
		return nil, false, &toolerrors.MissingEraWeightsError{EraID: eraID}
	}

	stale := e.indices.SwitchBlocksBeforeUpgrade[header.Height]
	e.cache[eraID] = header.NextEraValidatorWeights
	e.stale[eraID] = stale
	return header.NextEraValidatorWeights, stale, nil
}
