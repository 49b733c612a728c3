package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDigestRejectsWrongLength(t *testing.T) {
	_, err := NewDigest([]byte{1, 2, 3})
	require.Error(t, err)
	var invalidKeyErr *InvalidKeyError
	require.ErrorAs(t, err, &invalidKeyErr)
}

func TestNewDigestAcceptsExactLength(t *testing.T) {
	raw := make([]byte, DigestLength)
	raw[0] = 0xAB
	d, err := NewDigest(raw)
	require.NoError(t, err)
	require.Equal(t, raw, d.Bytes())
}

func TestDigestStringIsHex(t *testing.T) {
	d, err := NewDigest(make([]byte, DigestLength))
	require.NoError(t, err)
	require.Len(t, d.String(), DigestLength*2)
}
