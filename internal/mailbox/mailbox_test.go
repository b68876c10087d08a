package mailbox

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeIfPresent(t *testing.T) {
	m := New[int]()
	_, ok := m.Take()
	assert.False(t, ok, "empty slot means no update")

	m.Put(1)
	assert.True(t, m.Pending())
	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.Take()
	assert.False(t, ok, "value is consumed exactly once")
}

func TestLatestValueWins(t *testing.T) {
	m := New[string]()
	m.Put("a")
	m.Put("b")
	m.Put("c")
	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, uint64(2), m.Dropped())
}

func TestConcurrentProducer(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			m.Put(i)
		}
	}()

	last := 0
	for done := false; !done; {
		runtime.Gosched()
		if v, ok := m.Take(); ok {
			assert.Greater(t, v, last, "values never go backwards")
			last = v
			if v == 1000 {
				done = true
			}
		}
	}
	wg.Wait()
}

func TestFlag(t *testing.T) {
	var f Flag
	assert.False(t, f.Consume())
	f.Raise()
	f.Raise()
	assert.True(t, f.Consume())
	assert.False(t, f.Consume())
}
