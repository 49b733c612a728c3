package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyTotal(t *testing.T) {
	_, err := New(0, func(uint64) {}, nil)
	require.ErrorIs(t, err, ErrEmptyTotal)
}

func TestAdvanceByReportsTwentyBuckets(t *testing.T) {
	var percents []uint64
	tr, err := New(1, func(p uint64) { percents = append(percents, p) }, nil)
	require.NoError(t, err)

	tr.AdvanceBy(1)

	require.Len(t, percents, 20)
	for i, p := range percents {
		require.Equal(t, uint64((i+1)*5), p)
	}
}

func TestAdvanceByIncrementalSteps(t *testing.T) {
	var percents []uint64
	tr, err := New(100, func(p uint64) { percents = append(percents, p) }, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		tr.AdvanceBy(5)
	}
	require.Equal(t, []uint64{5, 10, 15, 20, 25, 30, 35, 40, 45, 50}, percents)

	tr.AdvanceBy(50)
	require.Equal(t, uint64(100), percents[len(percents)-1])
	require.Len(t, percents, 20)
}
