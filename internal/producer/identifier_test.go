package producer

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIdentifier_IsStableForTheSameGoroutine(t *testing.T) {
	info1 := DefaultIdentifier()
	info2 := DefaultIdentifier()

	assert.Equal(t, info1.UserId, info2.UserId, "repeated calls from the same goroutine must hash to the same user id")
	assert.Equal(t, info1.Name, info2.Name)
}

func TestDefaultIdentifier_SynthesizesNameWhenUnset(t *testing.T) {
	done := make(chan string, 1)
	go func() {
		done <- DefaultIdentifier().Name
	}()
	name := <-done
	assert.True(t, strings.HasPrefix(name, "goroutine-"))
}

func TestSetGoroutineName_IsUsedByDefaultIdentifier(t *testing.T) {
	done := make(chan struct{})
	var name string
	go func() {
		defer close(done)
		SetGoroutineName("worker-pool-3")
		name = DefaultIdentifier().Name
	}()
	<-done
	assert.Equal(t, "worker-pool-3", name)
}

func TestDefaultIdentifier_DistinctGoroutinesTypicallyDiffer(t *testing.T) {
	const n = 8
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = DefaultIdentifier().UserId
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, id := range ids {
		seen[id] = true
	}
	require.Greater(t, len(seen), 1, "distinct goroutines should usually produce distinct user ids")
}
