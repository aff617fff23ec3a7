// Package producer implements the façade-facing front end: the
// Subscriber that allocates local span ids, captures fields, stamps
// ticks, identifies the current timeline, and enqueues record
// envelopes (spec §4.8). This file holds the default thread-based
// timeline identifier.
package producer

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Identifier returns the UserTimelineInfo for the calling producer
// context (spec §3, §4.8). Implementations must be safe for
// concurrent use by many producer contexts at once.
type Identifier func() types.UserTimelineInfo

// goroutineIdentity extracts the numeric id embedded in
// runtime.Stack's header line ("goroutine 123 [running]:"), which is
// the closest stand-in Go offers for a thread handle.
func goroutineIdentity() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := string(buf[:n])

	const prefix = "goroutine "
	if len(line) <= len(prefix) {
		return 0
	}
	line = line[len(prefix):]

	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	id, err := strconv.ParseUint(line[:end], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

var goroutineNames sync.Map // goroutine id (uint64) -> name (string)

// SetGoroutineName associates name with the calling goroutine, so
// DefaultIdentifier can report a human-readable timeline name.
// Goroutines have no built-in name (unlike OS threads); callers that
// want a named timeline must call this once near the top of the
// goroutine.
func SetGoroutineName(name string) {
	goroutineNames.Store(goroutineIdentity(), name)
}

// DefaultIdentifier derives a UserTimelineInfo from the calling
// goroutine's identity: the user-id is an xxhash of the goroutine id,
// and the name is whatever was registered via SetGoroutineName, or a
// synthesized "goroutine-<id>" otherwise (spec §3: "the default
// implementation derives it from a hash of the current thread's
// identity").
func DefaultIdentifier() types.UserTimelineInfo {
	gid := goroutineIdentity()

	name := "goroutine-" + strconv.FormatUint(gid, 10)
	if v, ok := goroutineNames.Load(gid); ok {
		name = v.(string)
	}

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(gid >> (8 * i))
	}
	userId := xxhash.Sum64(buf[:])

	return types.UserTimelineInfo{Name: name, UserId: userId}
}
