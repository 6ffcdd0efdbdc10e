package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreClaim(t *testing.T) {
	store, err := NewProcessedStore("", "", 0, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "42")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.MarkProcessed(ctx, "42")
	require.NoError(t, err)
	require.False(t, claimed, "second claim for the same order must lose")

	claimed, err = store.MarkProcessed(ctx, "43")
	require.NoError(t, err)
	require.True(t, claimed, "a different order is an independent claim")
}

func TestMemoryStoreRelease(t *testing.T) {
	store, err := NewProcessedStore("", "", 0, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()

	claimed, _ := store.MarkProcessed(ctx, "42")
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "42"))

	claimed, _ = store.MarkProcessed(ctx, "42")
	require.True(t, claimed, "a released claim can be taken again")
}

func TestMemoryStoreTTL(t *testing.T) {
	store, err := NewProcessedStore("", "", 0, 20*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()

	claimed, _ := store.MarkProcessed(ctx, "42")
	require.True(t, claimed)

	time.Sleep(40 * time.Millisecond)

	claimed, _ = store.MarkProcessed(ctx, "42")
	require.True(t, claimed, "an expired claim is open again")
}

func TestMemoryStoreConcurrentClaims(t *testing.T) {
	store, err := NewProcessedStore("", "", 0, time.Minute)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins sync.Map
		won  int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			claimed, err := store.MarkProcessed(context.Background(), "42")
			require.NoError(t, err)
			if claimed {
				wins.Store(n, true)
			}
		}(i)
	}
	wg.Wait()

	wins.Range(func(_, _ any) bool { won++; return true })
	require.Equal(t, 1, won, "exactly one concurrent claimant may win")
}
