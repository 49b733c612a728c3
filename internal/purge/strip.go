package purge

import (
	"sort"

	"github.com/go-node-tools/dbmaint/internal/records"
)

type weightedSigner struct {
	key    records.PublicKey
	weight records.U512
}

// StripSignatures reduces proofs to the minimal subset that satisfies weak
// finality but not strict finality, retaining only that subset. It mutates
// proofs in place and reports whether a valid subset was found.
//
// Algorithm:
//  1. Order the signers present in both proofs and weights ascending by
//     weight, ties broken by public key — the smallest-first policy that
//     yields the smallest accumulated weight crossing the weak-finality
//     threshold.
//  2. Walk that order, accumulating signers until weak finality is reached.
//     Stop as soon as it is.
//  3. If the accumulated set also reaches strict finality (a single heavy
//     signer can push past both thresholds at once), repeatedly drop the
//     smallest-by-public-key signer from the accumulated set until strict
//     finality no longer holds. The drop order here is by public key, not
//     by weight: the accumulated set is reordered once, matching the
//     reference implementation's use of a key-ordered set for this step.
//     If the set empties before dropping below strict finality, return
//     false (no valid subset exists).
//  4. If after all removals weak finality no longer holds, return false.
//  5. Otherwise retain only the accumulated set in proofs; return true.
func StripSignatures(proofs records.ProofMap, weights records.WeightMap, total records.U512) (records.ProofMap, bool) {
	signers := presentSigners(proofs, weights)

	var accumulated []weightedSigner
	sum := records.NewU512(0)
	for _, s := range signers {
		if records.IsWeakFinality(sum, total) {
			break
		}
		sum = sum.Add(s.weight)
		accumulated = append(accumulated, s)
	}
	if !records.IsWeakFinality(sum, total) {
		return proofs, false
	}

	sort.Slice(accumulated, func(i, j int) bool { return accumulated[i].key.Less(accumulated[j].key) })

	for records.IsStrictFinality(sum, total) {
		if len(accumulated) == 0 {
			return proofs, false
		}
		sum = sum.Sub(accumulated[0].weight)
		accumulated = accumulated[1:]
	}
	if !records.IsWeakFinality(sum, total) {
		return proofs, false
	}

	keep := make(map[string]struct{}, len(accumulated))
	for _, s := range accumulated {
		keep[publicKeyString(s.key)] = struct{}{}
	}
	for _, s := range signers {
		if _, ok := keep[publicKeyString(s.key)]; !ok {
			proofs.Delete(s.key)
		}
	}
	return proofs, true
}

func publicKeyString(k records.PublicKey) string {
	return string(k.Tag) + string(k.Bytes)
}

func presentSigners(proofs records.ProofMap, weights records.WeightMap) []weightedSigner {
	out := make([]weightedSigner, 0, proofs.Len())
	for _, k := range proofs.SortedKeys() {
		w, ok := weights.Get(k)
		if !ok {
			continue
		}
		out = append(out, weightedSigner{key: k, weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		c := out[i].weight.Cmp(out[j].weight)
		if c != 0 {
			return c < 0
		}
		return out[i].key.Less(out[j].key)
	})
	return out
}
