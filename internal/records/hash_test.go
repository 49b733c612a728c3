package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentHashIsDeterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	require.Equal(t, a, b)

	c := ContentHash([]byte("different"))
	require.NotEqual(t, a, c)
}

func TestBlockBodyHashMemoizes(t *testing.T) {
	b := &BlockBody{Proposer: PublicKey{Tag: 1, Bytes: []byte{1}}}

	first, err := BlockBodyHash(b)
	require.NoError(t, err)

	cached, ok := b.CachedHash()
	require.True(t, ok)
	require.Equal(t, first, cached)

	second, err := BlockBodyHash(b)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
