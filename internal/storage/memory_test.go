package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got sample
	ok, err := m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	in := sample{Name: "a", Items: []string{"x"}}
	require.NoError(t, m.Set(ctx, "k", in))
	in.Items[0] = "mutated"

	ok, err = m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample{Name: "a", Items: []string{"x"}}, got)
	assert.Equal(t, []string{"k"}, m.Keys())

	require.NoError(t, m.Delete(ctx, "k"))
	ok, err = m.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_GetMalformed(t *testing.T) {
	m := NewMemory()
	m.SetRaw("k", []byte(`"not an object"`))

	var got sample
	ok, err := m.Get(context.Background(), "k", &got)

	assert.True(t, ok)
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get", storeErr.Op)
	assert.Equal(t, "k", storeErr.Key)
}

func TestMemory_SetUnencodable(t *testing.T) {
	err := NewMemory().Set(context.Background(), "k", make(chan int))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "set", storeErr.Op)
}

func TestMemory_Watch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var mu sync.Mutex
	var keys []string
	cancel := m.Watch(func(key string) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})

	require.NoError(t, m.Set(ctx, "a", 1))
	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx, "missing"))
	cancel()
	cancel()
	require.NoError(t, m.Set(ctx, "b", 2))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a"}, keys)
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := &StoreError{Op: "set", Key: "ccxOptions", Cause: cause}

	assert.Equal(t, `store set "ccxOptions": disk full`, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `store get "k" failed`, (&StoreError{Op: "get", Key: "k"}).Error())
}
