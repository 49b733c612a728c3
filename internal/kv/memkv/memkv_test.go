package memkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-node-tools/dbmaint/internal/kv"
)

func TestPutGetDeleteWithinOneTransaction(t *testing.T) {
	db := New("t1")
	tx, err := db.BeginRW()
	require.NoError(t, err)

	require.NoError(t, tx.Put("t1", []byte("a"), []byte("1")))
	v, err := tx.Get("t1", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, tx.Delete("t1", []byte("a")))
	_, err = tx.Get("t1", []byte("a"))
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, tx.Commit())
}

func TestWritesVisibleAfterCommit(t *testing.T) {
	db := New("t1")
	tx, err := db.BeginRW()
	require.NoError(t, err)
	require.NoError(t, tx.Put("t1", []byte("a"), []byte("1")))
	require.NoError(t, tx.Commit())

	ro, err := db.BeginRO()
	require.NoError(t, err)
	v, err := ro.Get("t1", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, ro.Commit())
}

func TestCursorIteratesInKeyOrder(t *testing.T) {
	db := New("t1")
	tx, err := db.BeginRW()
	require.NoError(t, err)
	require.NoError(t, tx.Put("t1", []byte("c"), []byte("3")))
	require.NoError(t, tx.Put("t1", []byte("a"), []byte("1")))
	require.NoError(t, tx.Put("t1", []byte("b"), []byte("2")))
	require.NoError(t, tx.Commit())

	ro, err := db.BeginRO()
	require.NoError(t, err)
	defer ro.Rollback()

	cur, err := ro.Cursor("t1")
	require.NoError(t, err)
	defer cur.Close()

	var keys []string
	k, _, err := cur.First()
	require.NoError(t, err)
	for k != nil {
		keys = append(keys, string(k))
		k, _, err = cur.Next()
		require.NoError(t, err)
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestRwTxSerializesAccessAcrossGoroutines(t *testing.T) {
	db := New("t1")
	tx1, err := db.BeginRW()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tx2, err := db.BeginRW()
		require.NoError(t, err)
		require.NoError(t, tx2.Commit())
		close(done)
	}()

	require.NoError(t, tx1.Commit())
	<-done
}
