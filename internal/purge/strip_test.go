package purge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-node-tools/dbmaint/internal/records"
)

func key(tag byte, b byte) records.PublicKey {
	return records.PublicKey{Tag: tag, Bytes: []byte{b}}
}

func sig(b byte) records.Signature {
	return records.Signature{Tag: 1, Bytes: []byte{b}}
}

func buildWeights(weights map[byte]uint64) records.WeightMap {
	wm := records.NewWeightMap()
	for b, w := range weights {
		wm.Set(key(1, b), records.NewU512(w))
	}
	return wm
}

func buildProofs(signers ...byte) records.ProofMap {
	pm := records.NewProofMap()
	for _, b := range signers {
		pm.Set(key(1, b), sig(b))
	}
	return pm
}

func sumOf(proofs records.ProofMap, weights records.WeightMap) records.U512 {
	total := records.NewU512(0)
	for _, k := range proofs.SortedKeys() {
		if w, ok := weights.Get(k); ok {
			total = total.Add(w)
		}
	}
	return total
}

// Scenario 1 from the testable-properties list: {K0,K1,K2,K3} with weights
// {100,200,300,400}, T=1000. Returns true, retains exactly {K0,K1,K2}.
func TestStripSignaturesProgressiveWeights(t *testing.T) {
	weights := buildWeights(map[byte]uint64{0: 100, 1: 200, 2: 300, 3: 400})
	proofs := buildProofs(0, 1, 2, 3)
	total := records.NewU512(1000)

	out, changed := StripSignatures(proofs, weights, total)

	require.True(t, changed)
	require.True(t, out.Has(key(1, 0)))
	require.True(t, out.Has(key(1, 1)))
	require.True(t, out.Has(key(1, 2)))
	require.False(t, out.Has(key(1, 3)))
	require.Equal(t, 3, out.Len())
}

func TestStripSignaturesEqualWeights(t *testing.T) {
	weights := buildWeights(map[byte]uint64{0: 10, 1: 10, 2: 10, 3: 10, 4: 10})
	proofs := buildProofs(0, 1, 2, 3, 4)
	total := weights.Total()

	out, changed := StripSignatures(proofs, weights, total)

	require.True(t, changed)
	require.True(t, records.IsWeakFinality(sumOf(out, weights), total))
	require.False(t, records.IsStrictFinality(sumOf(out, weights), total))
}

// Spec-adjacent: the lone tiny signer is cheap enough to fold into the
// accumulated set before weak finality is reached, so it survives; only the
// excess large signers needed to cross the threshold are retained alongside
// it and the rest are dropped.
func TestStripSignaturesOneSmallThreeLarge(t *testing.T) {
	weights := buildWeights(map[byte]uint64{0: 1, 1: 100, 2: 100, 3: 100})
	proofs := buildProofs(0, 1, 2, 3)
	total := weights.Total()

	out, changed := StripSignatures(proofs, weights, total)

	require.True(t, changed)
	require.True(t, out.Has(key(1, 0)), "the smallest signer accumulates first and is kept")
	require.Equal(t, 2, out.Len())
	require.True(t, records.IsWeakFinality(sumOf(out, weights), total))
	require.False(t, records.IsStrictFinality(sumOf(out, weights), total))
}

// Scenario 4: {K0,K1,K2} sign, weights {100,200,700}, T=1000. Returns false:
// K2 alone reaches strict finality and no smaller subset reaches weak
// finality.
func TestStripSignaturesDominantSignerReturnsFalse(t *testing.T) {
	weights := buildWeights(map[byte]uint64{0: 100, 1: 200, 2: 700})
	proofs := buildProofs(0, 1, 2)
	total := records.NewU512(1000)

	_, changed := StripSignatures(proofs, weights, total)

	require.False(t, changed)
}

// Scenario 5: {K0} signs weight 1000, T=1000. Returns false.
func TestStripSignaturesSingleSignerReturnsFalse(t *testing.T) {
	weights := buildWeights(map[byte]uint64{0: 1000})
	proofs := buildProofs(0)
	total := records.NewU512(1000)

	_, changed := StripSignatures(proofs, weights, total)

	require.False(t, changed)
}
