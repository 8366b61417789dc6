package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator_Sequential(t *testing.T) {
	gen := NewSequenceGenerator("")
	assert.Equal(t, "req-1", gen.Generate())
	assert.Equal(t, "req-2", gen.Generate())
	assert.Equal(t, 2, gen.Issued())

	custom := NewSequenceGenerator("act")
	assert.Equal(t, "act-1", custom.Generate())
}

func TestSequenceGenerator_ConcurrentIDsAreUnique(t *testing.T) {
	gen := NewSequenceGenerator("req")
	const workers = 50

	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, workers)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}
