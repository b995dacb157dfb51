package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_Reset(t *testing.T) {
	c := NewClock()
	c.Next()
	c.Next()

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next(), "reset clock replays identical seq values")
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s], "seq %d generated twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestHistory_DeterministicSeqPerScope(t *testing.T) {
	build := func() []int64 {
		h := NewHistory()
		h.Capture("a", "memo", "one")
		h.CaptureShared("b", "memo", "two")
		h.Capture("c", "memo", "three")
		var seqs []int64
		for _, ev := range h.Events() {
			seqs = append(seqs, ev.Seq)
		}
		return seqs
	}

	first := build()
	assert.Equal(t, []int64{1, 1, 2}, first, "scopes keep independent clocks")
	assert.Equal(t, first, build(), "identical builder calls produce identical histories")
}
