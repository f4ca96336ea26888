package seen

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddHasRoundTrip(t *testing.T) {
	t.Parallel()
	s := New(10)
	assert.False(t, s.Has("A1"))
	assert.True(t, s.Add("A1"))
	assert.True(t, s.Has("A1"))
	assert.False(t, s.Add("A1"), "second add is a no-op")
	assert.Equal(t, 1, s.Len())
}

func TestCleanupKeepsNewestHalf(t *testing.T) {
	t.Parallel()
	s := New(DefaultMaxTracked)
	for i := 0; i < 1500; i++ {
		s.Add("id-" + strconv.Itoa(i))
	}
	require.Equal(t, 1500, s.Len())

	removed := s.Cleanup()
	assert.Equal(t, 1000, removed)
	require.Equal(t, DefaultMaxTracked/2, s.Len())

	for i := 1000; i < 1500; i++ {
		assert.True(t, s.Has("id-"+strconv.Itoa(i)), "id-%d should survive", i)
	}
	for i := 0; i < 1000; i++ {
		if s.Has("id-" + strconv.Itoa(i)) {
			t.Fatalf("id-%d should have been evicted", i)
		}
	}

	snap := s.Snapshot()
	assert.Equal(t, "id-1000", snap[0])
	assert.Equal(t, "id-1499", snap[len(snap)-1])
}

func TestCleanupUnderCapIsNoop(t *testing.T) {
	t.Parallel()
	s := New(4)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Add(id)
	}
	assert.Equal(t, 0, s.Cleanup())
	assert.Equal(t, 4, s.Len())

	s.Add("e")
	assert.Equal(t, 3, s.Cleanup())
	assert.Equal(t, []string{"d", "e"}, s.Snapshot())
}

func TestSizeBoundAfterInterleavedCleanup(t *testing.T) {
	t.Parallel()
	const max = 50
	s := New(max)
	for round := 0; round < 20; round++ {
		for i := 0; i < 37; i++ {
			s.Add(strconv.Itoa(round) + "-" + strconv.Itoa(i))
		}
		s.Cleanup()
		assert.LessOrEqual(t, s.Len(), max, "round %d", round)
	}
}

func TestEvictedIDCanBeReAdded(t *testing.T) {
	t.Parallel()
	s := New(2)
	s.Add("a")
	s.Add("b")
	s.Add("c")
	s.Cleanup()
	require.False(t, s.Has("a"))
	assert.True(t, s.Add("a"))
}

func TestNewDefaultCapacity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultMaxTracked, New(0).Max())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := New(100)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(strconv.Itoa(w) + ":" + strconv.Itoa(i))
				_ = s.Has("x")
				_ = s.Len()
				if i%25 == 0 {
					s.Cleanup()
				}
			}
		}(w)
	}
	wg.Wait()
	s.Cleanup()
	assert.LessOrEqual(t, s.Len(), 100)
}
