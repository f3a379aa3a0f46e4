package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLikes(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"0", 0},
		{"12", 12},
		{" 3 ", 3},
		{"", 0},
		{"abc", 0},
		{"1.5", 0},
		{"-1", 0},
		{"NaN", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeLikes(tt.value), "decodeLikes(%q)", tt.value)
	}
}

func TestLikeCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	likes := NewLikeCounters(store)

	n, err := likes.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 1; i <= 3; i++ {
		n, err = likes.Increment(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	value, ok, err := store.Get(ctx, "likes_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", value)

	assert.Error(t, likes.Set(ctx, 1, -1))

	require.NoError(t, likes.Delete(ctx, 1))
	n, err = likes.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLikeCountersAllSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "likes_5", "2"))
	require.NoError(t, store.Set(ctx, "likes_x", "7"))
	require.NoError(t, store.Set(ctx, "likes_6", "oops"))
	require.NoError(t, store.Set(ctx, endpointKey, "http://h/api"))

	counters, err := NewLikeCounters(store).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{5: 2, 6: 0}, counters)
}

func TestLikeCountersPruneWithoutKeys(t *testing.T) {
	likes := NewLikeCounters(NewMemcacheStore("127.0.0.1:1"))

	_, err := likes.Prune(context.Background(), nil)
	assert.ErrorIs(t, err, ErrKeysUnsupported)
}

func TestLikesText(t *testing.T) {
	assert.Equal(t, "0 Likes", likesText(0))
	assert.Equal(t, "1 Likes", likesText(1))
}
