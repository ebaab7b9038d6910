package cmap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/cmap"
)

func TestPutGet(t *testing.T) {
	m := cmap.New[string, int](cmap.HashString)

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Put("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutIsFirstWriterWins(t *testing.T) {
	m := cmap.New[string, int](cmap.HashString)

	m.Put("a", 1)
	m.Put("a", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v, "second Put for an existing key must be a no-op")
}

func TestDelete(t *testing.T) {
	m := cmap.New[uint32, string](cmap.HashUint32)

	m.Put(7, "seven")
	m.Delete(7)

	_, ok := m.Get(7)
	assert.False(t, ok)
}

func TestGetOrPut(t *testing.T) {
	m := cmap.New[string, int](cmap.HashString)

	v, existed := m.GetOrPut("x", 10)
	assert.False(t, existed)
	assert.Equal(t, 10, v)

	v, existed = m.GetOrPut("x", 99)
	assert.True(t, existed)
	assert.Equal(t, 10, v)
}

func TestConcurrentAccess(t *testing.T) {
	m := cmap.New[uint32, int](cmap.HashUint32)

	var wg sync.WaitGroup
	for i := uint32(0); i < 500; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			m.Put(id, int(id))
		}(i)
	}
	wg.Wait()

	for i := uint32(0); i < 500; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		assert.Equal(t, int(i), v)
	}
}
