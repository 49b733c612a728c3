package records

import "lukechampine.com/blake3"

// ContentHash returns the BLAKE3-256 digest of raw. Used to content-address
// a BlockBody against its owning header's BodyHash.
func ContentHash(raw []byte) Digest {
	sum := blake3.Sum256(raw)
	return Digest(sum)
}

// BlockBodyHash computes and memoizes the content hash of b, matching the
// invariant cachedHash == H(serialize(body_without_cache)).
func BlockBodyHash(b *BlockBody) (Digest, error) {
	if d, ok := b.CachedHash(); ok {
		return d, nil
	}
	raw, err := EncodeBlockBody(b)
	if err != nil {
		return Digest{}, err
	}
	d := ContentHash(raw)
	b.setCachedHash(d)
	return d, nil
}
