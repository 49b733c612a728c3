package records

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// binaryHandle is the deterministic fixed-endian, length-prefixed codec used
// to persist every record. Canonical CBOR sorts map keys and fixes integer
// widths, which is what gives two independent encodes of an equal value the
// same byte string — the property the spec calls a "deterministic binary
// codec".
var binaryHandle = newBinaryHandle()

// contentHandle is a second, distinct canonical encoding used only to
// measure chunked content-addressable size (see
// summary.ExecutionResultsStats.Feed). It must
// not be interchangeable with binaryHandle's wire format.
var contentHandle = newContentHandle()

func newBinaryHandle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	h.SignedInteger = true
	return h
}

func newContentHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.Canonical = true
	return h
}

// Encode serializes v with the deterministic binary codec.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, binaryHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes raw into v using the deterministic binary codec.
func Decode(raw []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(raw), binaryHandle)
	return dec.Decode(v)
}

// EncodeContentAddressable serializes v with the second, canonical codec
// used exclusively for chunk-count measurement.
func EncodeContentAddressable(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, contentHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wireBlockHeader/wireBlockBody/... mirror their records.* counterparts but
// use plain slices of key/value entries so the codec can walk them without
// needing to know about WeightMap/ProofMap's internal string-keyed
// representation.

type wireBlockHeader struct {
	Height                  uint64
	EraID                   EraID
	ProtocolVersion         ProtocolVersion
	BodyHash                Digest
	StateRootHash           Digest
	IsSwitchBlock           bool
	NextEraValidatorWeights []wireWeightEntry // nil unless IsSwitchBlock
}

type wireWeightEntry struct {
	Key    PublicKey
	Weight U512
}

// EncodeBlockHeader serializes a BlockHeader deterministically.
func EncodeBlockHeader(h *BlockHeader) ([]byte, error) {
	w := wireBlockHeader{
		Height:          h.Height,
		EraID:           h.EraID,
		ProtocolVersion: h.ProtocolVersion,
		BodyHash:        h.BodyHash,
		StateRootHash:   h.StateRootHash,
		IsSwitchBlock:   h.IsSwitchBlock,
	}
	if h.NextEraValidatorWeights != nil {
		entries := h.NextEraValidatorWeights.SortedEntries()
		w.NextEraValidatorWeights = make([]wireWeightEntry, len(entries))
		for i, e := range entries {
			w.NextEraValidatorWeights[i] = wireWeightEntry{Key: e.Key, Weight: e.Weight}
		}
	}
	return Encode(&w)
}

// DecodeBlockHeader deserializes a BlockHeader.
func DecodeBlockHeader(raw []byte) (*BlockHeader, error) {
	var w wireBlockHeader
	if err := Decode(raw, &w); err != nil {
		return nil, err
	}
	h := &BlockHeader{
		Height:          w.Height,
		EraID:           w.EraID,
		ProtocolVersion: w.ProtocolVersion,
		BodyHash:        w.BodyHash,
		StateRootHash:   w.StateRootHash,
		IsSwitchBlock:   w.IsSwitchBlock,
	}
	if w.NextEraValidatorWeights != nil {
		wm := NewWeightMap()
		for _, e := range w.NextEraValidatorWeights {
			wm.Set(e.Key, e.Weight)
		}
		h.NextEraValidatorWeights = &wm
	}
	return h, nil
}

type wireBlockBody struct {
	Proposer       PublicKey
	DeployHashes   []DeployHash
	TransferHashes []DeployHash
}

// EncodeBlockBody serializes a BlockBody deterministically. It does not
// touch b's cached hash; BlockBodyHash does that.
func EncodeBlockBody(b *BlockBody) ([]byte, error) {
	w := wireBlockBody{
		Proposer:       b.Proposer,
		DeployHashes:   b.DeployHashes,
		TransferHashes: b.TransferHashes,
	}
	raw, err := Encode(&w)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeBlockBody deserializes a BlockBody.
func DecodeBlockBody(raw []byte) (*BlockBody, error) {
	var w wireBlockBody
	if err := Decode(raw, &w); err != nil {
		return nil, err
	}
	return &BlockBody{
		Proposer:       w.Proposer,
		DeployHashes:   w.DeployHashes,
		TransferHashes: w.TransferHashes,
	}, nil
}

type wireExecutionResultEntry struct {
	BlockHash BlockHash
	Result    ExecutionResult
}

type wireDeployMetadata struct {
	ExecutionResults []wireExecutionResultEntry
}

// EncodeDeployMetadata serializes a DeployMetadata deterministically,
// ordering execution results by block hash for reproducibility.
func EncodeDeployMetadata(m *DeployMetadata) ([]byte, error) {
	w := wireDeployMetadata{}
	for bh, res := range m.ExecutionResults {
		w.ExecutionResults = append(w.ExecutionResults, wireExecutionResultEntry{BlockHash: bh, Result: res})
	}
	sortExecutionResultEntries(w.ExecutionResults)
	return Encode(&w)
}

// DecodeDeployMetadata deserializes a DeployMetadata.
func DecodeDeployMetadata(raw []byte) (*DeployMetadata, error) {
	var w wireDeployMetadata
	if err := Decode(raw, &w); err != nil {
		return nil, err
	}
	m := &DeployMetadata{ExecutionResults: make(map[BlockHash]ExecutionResult, len(w.ExecutionResults))}
	for _, e := range w.ExecutionResults {
		m.ExecutionResults[e.BlockHash] = e.Result
	}
	return m, nil
}

func sortExecutionResultEntries(entries []wireExecutionResultEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && bytes.Compare(entries[j].BlockHash[:], entries[j-1].BlockHash[:]) < 0; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

type wireBlockSignatures struct {
	BlockHash BlockHash
	EraID     EraID
	Proofs    []wireProofEntry
}

type wireProofEntry struct {
	Key PublicKey
	Sig Signature
}

// EncodeBlockSignatures serializes a BlockSignatures deterministically.
func EncodeBlockSignatures(s *BlockSignatures) ([]byte, error) {
	w := wireBlockSignatures{BlockHash: s.BlockHash, EraID: s.EraID}
	for _, k := range s.Proofs.SortedKeys() {
		e := s.Proofs[publicKeyMapKey(k)]
		w.Proofs = append(w.Proofs, wireProofEntry{Key: e.Key, Sig: e.Sig})
	}
	return Encode(&w)
}

// DecodeBlockSignatures deserializes a BlockSignatures.
func DecodeBlockSignatures(raw []byte) (*BlockSignatures, error) {
	var w wireBlockSignatures
	if err := Decode(raw, &w); err != nil {
		return nil, err
	}
	s := &BlockSignatures{BlockHash: w.BlockHash, EraID: w.EraID, Proofs: NewProofMap()}
	for _, e := range w.Proofs {
		s.Proofs.Set(e.Key, e.Sig)
	}
	return s, nil
}
