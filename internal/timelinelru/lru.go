// Package timelinelru implements the fixed-capacity timeline
// residency cache (spec §4.2), ported from the original Rust
// implementation's deliberately linear-scan design
// (tracing-modality/src/common/timeline_lru.rs): expected capacity
// is small (default 64), so a linear scan is simpler and cheaper than
// keeping the cache sorted by last use on every touch.
package timelinelru

import (
	"time"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

type item struct {
	userId     uint64
	timelineId types.RemoteTimelineId
	lastUse    time.Time
}

// LRU is the fixed-capacity {user_id -> remote_timeline_id} residency
// map described in spec §4.2.
type LRU struct {
	capacity int
	data     []item
}

// New builds an LRU with the given capacity. Capacity <= 0 is
// replaced by the spec's documented default of 64.
func New(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 64
	}
	return &LRU{
		capacity: capacity,
		data:     make([]item, 0, capacity),
	}
}

// TokenKind distinguishes the two miss outcomes of Query.
type TokenKind int

const (
	// TokenAppend means the cache is not yet full; Insert should
	// append a new slot.
	TokenAppend TokenKind = iota
	// TokenEvict means the cache is full; Insert should overwrite
	// the slot named by Index.
	TokenEvict
)

// Token is the opaque miss-path result of Query, consumed by Insert.
// Splitting query/insert into two calls avoids a borrow/lookup race
// within a single method (spec §4.2).
type Token struct {
	kind  TokenKind
	index int
}

// Kind reports whether this token completes an append or an eviction,
// so callers can count evictions without reaching into Token's fields.
func (t Token) Kind() TokenKind {
	return t.kind
}

// Query looks up userId. On a hit it touches the entry's last-use
// timestamp and returns the cached remote id. On a miss it returns a
// Token describing how Insert should complete the miss: append if the
// cache isn't full yet, otherwise evict the slot with the smallest
// last-use timestamp (ties broken by the lowest index, since the scan
// runs in index order and only replaces the current "oldest" pointer
// on a strictly smaller timestamp).
func (l *LRU) Query(userId uint64) (types.RemoteTimelineId, bool, Token) {
	full := len(l.data) >= l.capacity

	if !full {
		for i := range l.data {
			if l.data[i].userId == userId {
				l.data[i].lastUse = time.Now()
				return l.data[i].timelineId, true, Token{}
			}
		}
		return types.RemoteTimelineId{}, false, Token{kind: TokenAppend}
	}

	oldestSlot := 0
	oldestTime := l.data[0].lastUse
	for i := range l.data {
		if l.data[i].userId == userId {
			l.data[i].lastUse = time.Now()
			return l.data[i].timelineId, true, Token{}
		}
		// Strictly-less-than keeps the lowest index on ties (spec
		// §4.2's tie-break rule); the Rust original's >= comparison
		// instead keeps the highest index on ties — a source
		// divergence resolved in favor of spec.md, see DESIGN.md.
		if l.data[i].lastUse.Before(oldestTime) {
			oldestTime = l.data[i].lastUse
			oldestSlot = i
		}
	}
	return types.RemoteTimelineId{}, false, Token{kind: TokenEvict, index: oldestSlot}
}

// Insert completes the miss path for userId using the token Query
// returned. Calling Insert with a stale token (from a different
// userId's Query) is a caller error; the binder never does this
// because it always calls Query then Insert for the same userId
// without an intervening Query for a different id (spec §4.2).
func (l *LRU) Insert(userId uint64, timelineId types.RemoteTimelineId, token Token) {
	entry := item{userId: userId, timelineId: timelineId, lastUse: time.Now()}

	switch token.kind {
	case TokenAppend:
		l.data = append(l.data, entry)
	case TokenEvict:
		if token.index >= 0 && token.index < len(l.data) {
			l.data[token.index] = entry
		}
	}
}

// Len reports the current number of resident entries, for tests and
// metrics.
func (l *LRU) Len() int {
	return len(l.data)
}
