package records

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// EraID is a totally ordered era identifier. The switch block of era E
// advertises the validator weights for era E+1.
type EraID uint64

// Successor returns the next era id.
func (e EraID) Successor() EraID { return e + 1 }

// IsGenesis reports whether this is era zero.
func (e EraID) IsGenesis() bool { return e == 0 }

// ProtocolVersion is a semantic (major, minor, patch) triple. It orders
// lexicographically and is used only to detect the switch block that
// precedes a protocol upgrade.
type ProtocolVersion struct {
	Major, Minor, Patch uint32
}

func (p ProtocolVersion) Less(o ProtocolVersion) bool {
	if p.Major != o.Major {
		return p.Major < o.Major
	}
	if p.Minor != o.Minor {
		return p.Minor < o.Minor
	}
	return p.Patch < o.Patch
}

func (p ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", p.Major, p.Minor, p.Patch)
}

// U512 is a 512-bit unsigned integer used for validator stake weights.
// There is no 512-bit fixed-width integer type in the reference dependency
// stack (holiman/uint256 tops out at 256 bits), so this wraps math/big.Int
// from the standard library; see DESIGN.md for the stdlib justification.
// Negative values never occur in practice; overflow past 2^512 is treated
// as a programmer error, matching the source system's semantics.
type U512 struct {
	i big.Int
}

// NewU512 builds a U512 from a non-negative uint64.
func NewU512(v uint64) U512 {
	var u U512
	u.i.SetUint64(v)
	return u
}

// Add returns a + b.
func (a U512) Add(b U512) U512 {
	var out U512
	out.i.Add(&a.i, &b.i)
	return out
}

// Sub returns a - b. The caller must ensure a >= b.
func (a U512) Sub(b U512) U512 {
	var out U512
	out.i.Sub(&a.i, &b.i)
	return out
}

// Cmp compares a to b: -1, 0, +1.
func (a U512) Cmp(b U512) int { return a.i.Cmp(&b.i) }

// MulSmall returns a * n for a small non-negative multiplier.
func (a U512) MulSmall(n int64) U512 {
	var out U512
	out.i.Mul(&a.i, big.NewInt(n))
	return out
}

func (a U512) String() string { return a.i.String() }

// MarshalBinary implements encoding.BinaryMarshaler so the codec layer can
// serialize U512 despite its unexported big.Int field.
func (a U512) MarshalBinary() ([]byte, error) {
	return a.i.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *U512) UnmarshalBinary(data []byte) error {
	a.i.SetBytes(data)
	return nil
}

// IsWeakFinality reports whether accumulated weight w reaches weak finality
// relative to total t: 3w > t.
func IsWeakFinality(w, t U512) bool {
	return w.MulSmall(3).Cmp(t) > 0
}

// IsStrictFinality reports whether accumulated weight w reaches strict
// finality relative to total t: 3w > 2t.
func IsStrictFinality(w, t U512) bool {
	return w.MulSmall(3).Cmp(t.MulSmall(2)) > 0
}

// PublicKey is an opaque tagged key blob. The toolkit never interprets the
// key material itself (no signature verification is ever performed), only
// its ordering and identity.
type PublicKey struct {
	Tag   byte
	Bytes []byte
}

// Less orders public keys by (Tag, Bytes) for deterministic iteration.
func (p PublicKey) Less(o PublicKey) bool {
	if p.Tag != o.Tag {
		return p.Tag < o.Tag
	}
	return bytes.Compare(p.Bytes, o.Bytes) < 0
}

func (p PublicKey) Equal(o PublicKey) bool {
	return p.Tag == o.Tag && bytes.Equal(p.Bytes, o.Bytes)
}

func (p PublicKey) key() string { return string(p.Tag) + string(p.Bytes) }

// Signature is an opaque signature blob, structurally identical in shape to
// PublicKey but never validated against one.
type Signature struct {
	Tag   byte
	Bytes []byte
}

// WeightMap is an ordered validator weight table, keyed by PublicKey.
type WeightMap map[string]weightEntry

type weightEntry struct {
	Key    PublicKey
	Weight U512
}

// NewWeightMap builds an empty weight map.
func NewWeightMap() WeightMap { return make(WeightMap) }

func (m WeightMap) Set(k PublicKey, w U512) { m[k.key()] = weightEntry{Key: k, Weight: w} }

func (m WeightMap) Get(k PublicKey) (U512, bool) {
	e, ok := m[k.key()]
	return e.Weight, ok
}

func (m WeightMap) Len() int { return len(m) }

// Total sums every weight in the map.
func (m WeightMap) Total() U512 {
	total := NewU512(0)
	for _, e := range m {
		total = total.Add(e.Weight)
	}
	return total
}

// SortedEntries returns the (key, weight) pairs ordered ascending by weight,
// ties broken by PublicKey ordering. This is the "smallest-first" order the
// finality-stripping algorithm walks.
func (m WeightMap) SortedEntries() []weightEntry {
	out := make([]weightEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		c := out[i].Weight.Cmp(out[j].Weight)
		if c != 0 {
			return c < 0
		}
		return out[i].Key.Less(out[j].Key)
	})
	return out
}

// ProofMap is an ordered (PublicKey -> Signature) map, preserving the
// insertion-independent, deterministic iteration the binary codec requires.
type ProofMap map[string]proofEntry

type proofEntry struct {
	Key PublicKey
	Sig Signature
}

func NewProofMap() ProofMap { return make(ProofMap) }

func (m ProofMap) Set(k PublicKey, s Signature) { m[k.key()] = proofEntry{Key: k, Sig: s} }

func (m ProofMap) Has(k PublicKey) bool {
	_, ok := m[k.key()]
	return ok
}

func (m ProofMap) Delete(k PublicKey) { delete(m, k.key()) }

func (m ProofMap) Len() int { return len(m) }

// RetainOnly drops every entry whose key is not in keep.
func (m ProofMap) RetainOnly(keep map[string]struct{}) {
	for k := range m {
		if _, ok := keep[k]; !ok {
			delete(m, k)
		}
	}
}

// SortedKeys returns the proof map's keys in PublicKey order.
func (m ProofMap) SortedKeys() []PublicKey {
	out := make([]PublicKey, 0, len(m))
	for _, e := range m {
		out = append(out, e.Key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func publicKeyMapKey(p PublicKey) string { return p.key() }

// BlockHeader is the opaque header payload persisted by the node.
type BlockHeader struct {
	Height                  uint64
	EraID                   EraID
	ProtocolVersion         ProtocolVersion
	BodyHash                Digest
	StateRootHash           Digest
	IsSwitchBlock           bool
	NextEraValidatorWeights *WeightMap // nil unless IsSwitchBlock
}

// BlockBody lists a block's deploys, transfers and proposer. Content-
// addressed by its own digest, which must match the owning header's
// BodyHash. CachedHash is a transient memoization slot: it is never
// serialized and callers must not rely on it surviving a round trip.
type BlockBody struct {
	Proposer       PublicKey
	DeployHashes   []DeployHash
	TransferHashes []DeployHash

	cachedHash *Digest
}

// CachedHash returns the memoized content hash if one has been computed for
// this instance (by BlockBodyHash), else false.
func (b *BlockBody) CachedHash() (Digest, bool) {
	if b.cachedHash == nil {
		return Digest{}, false
	}
	return *b.cachedHash, true
}

func (b *BlockBody) setCachedHash(d Digest) { b.cachedHash = &d }

// ExecutionResult is carried opaquely: the toolkit measures its encoded
// size but never interprets its contents.
type ExecutionResult struct {
	Payload []byte
}

// DeployMetadata records, per block a deploy ran in, the execution result
// produced there. A deploy can appear in more than one block (e.g. across a
// reorg in the source system this toolkit was modeled on), hence the map.
type DeployMetadata struct {
	ExecutionResults map[BlockHash]ExecutionResult
}

// BlockSignatures is the per-block finality-signature record rewritten by
// the purger.
type BlockSignatures struct {
	BlockHash BlockHash
	EraID     EraID
	Proofs    ProofMap
}
