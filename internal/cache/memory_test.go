package cache

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		exists, err := c.Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := c.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		_, err := c.Get(ctx, "short")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "gone", []byte("v"), time.Minute))
		require.NoError(t, c.Delete(ctx, "gone"))

		_, err := c.Get(ctx, "gone")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestMemoryCache_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("sees nil for an absent key", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		got, err := c.Update(ctx, "new", time.Minute, func(old []byte) ([]byte, error) {
			assert.Nil(t, old)
			return []byte("first"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("transforms the current value", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", []byte("a"), time.Minute))

		got, err := c.Update(ctx, "k", time.Minute, func(old []byte) ([]byte, error) {
			return append(old, 'b'), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("ab"), got)
	})

	t.Run("skip keeps the stored value", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", []byte("keep"), time.Minute))

		got, err := c.Update(ctx, "k", time.Minute, func(old []byte) ([]byte, error) {
			return nil, ErrSkipUpdate
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("keep"), got)

		stored, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("keep"), stored)
	})

	t.Run("fn errors propagate without writing", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", []byte("orig"), time.Minute))

		_, err := c.Update(ctx, "k", time.Minute, func(old []byte) ([]byte, error) {
			return nil, errors.New("corrupt")
		})
		assert.Error(t, err)

		stored, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("orig"), stored)
	})

	t.Run("concurrent updates never lose increments", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()
		require.NoError(t, c.Set(ctx, "ctr", []byte{0}, time.Minute))

		const workers = 20
		var wg gosync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				_, err := c.Update(ctx, "ctr", time.Minute, func(old []byte) ([]byte, error) {
					return []byte{old[0] + 1}, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := c.Get(ctx, "ctr")
		require.NoError(t, err)
		assert.Equal(t, byte(workers), got[0])
	})
}
