package timelinelru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

func remoteId(b byte) types.RemoteTimelineId {
	var id types.RemoteTimelineId
	id[0] = b
	return id
}

func TestLRU_AppendBelowCapacity(t *testing.T) {
	l := New(2)

	_, hit, token := l.Query(1)
	require.False(t, hit)
	require.Equal(t, TokenAppend, token.Kind())
	l.Insert(1, remoteId(1), token)

	assert.Equal(t, 1, l.Len())

	id, hit, _ := l.Query(1)
	assert.True(t, hit)
	assert.Equal(t, remoteId(1), id)
}

func TestLRU_QueryThenInsertIsIdempotentOnHit(t *testing.T) {
	l := New(4)
	_, _, token := l.Query(1)
	l.Insert(1, remoteId(1), token)

	id1, hit1, token1 := l.Query(1)
	id2, hit2, token2 := l.Query(1)

	assert.True(t, hit1)
	assert.True(t, hit2)
	assert.Equal(t, id1, id2)
	assert.Equal(t, Token{}, token1)
	assert.Equal(t, Token{}, token2)
}

func TestLRU_EvictsOldestOnFullCapacity(t *testing.T) {
	l := New(2)

	_, _, t1 := l.Query(1)
	l.Insert(1, remoteId(1), t1)
	time.Sleep(time.Millisecond)

	_, _, t2 := l.Query(2)
	l.Insert(2, remoteId(2), t2)
	time.Sleep(time.Millisecond)

	// cache full now; U1 is oldest
	_, hit, t3 := l.Query(3)
	require.False(t, hit)
	require.Equal(t, TokenEvict, t3.Kind())
	l.Insert(3, remoteId(3), t3)

	_, hit1, _ := l.Query(1)
	assert.False(t, hit1, "U1's entry should have been evicted")

	id2, hit2, _ := l.Query(2)
	assert.True(t, hit2)
	assert.Equal(t, remoteId(2), id2)
}

func TestLRU_TieBreakKeepsLowestIndexOnEqualTimestamps(t *testing.T) {
	// Three slots with identical timestamps (set explicitly after
	// insertion): spec §4.2 says the lowest index is evicted first.
	l := New(3)
	for i, uid := range []uint64{10, 20, 30} {
		_, _, tok := l.Query(uid)
		l.Insert(uid, remoteId(byte(i+1)), tok)
	}
	same := time.Now()
	for i := range l.data {
		l.data[i].lastUse = same
	}

	_, hit, tok := l.Query(40)
	require.False(t, hit)
	require.Equal(t, TokenEvict, tok.Kind())
	l.Insert(40, remoteId(4), tok)

	_, hit10, _ := l.Query(10)
	assert.False(t, hit10, "the lowest index (first inserted, uid 10) should be evicted on a timestamp tie")

	_, hit20, _ := l.Query(20)
	assert.True(t, hit20)
}
