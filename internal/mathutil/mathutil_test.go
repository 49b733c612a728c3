package mathutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 0, CeilDiv(0, 20))
	require.Equal(t, 1, CeilDiv(1, 20))
	require.Equal(t, 1, CeilDiv(20, 20))
	require.Equal(t, 2, CeilDiv(21, 20))
}

func TestParseUint64List(t *testing.T) {
	out, err := ParseUint64List("10, 20 ,30")
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 20, 30}, out)

	out, err = ParseUint64List("")
	require.NoError(t, err)
	require.Nil(t, out)

	_, err = ParseUint64List("10,bogus")
	require.Error(t, err)
}
