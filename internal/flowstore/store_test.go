package flowstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/stretchr/testify/require"
)

func newStore() (*Store, cache.Client) {
	c := cache.NewMemory("", time.Minute)
	return New(c), c
}

func TestPutGetTake(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	fid := NewFlowID()

	_, ok, err := s.Get(ctx, KindSignup, fid)
	require.NoError(t, err)
	require.False(t, ok)

	rec := Record{HashedOTP: "h", Email: "ana@example.com", FirstName: "Ana", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Put(ctx, KindSignup, fid, rec, time.Minute))

	got, ok, err := s.Get(ctx, KindSignup, fid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindSignup, got.Kind)
	require.Equal(t, "ana@example.com", got.Email)

	// otro kind no ve el registro
	_, ok, err = s.Get(ctx, KindRecovery, fid)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err = s.Take(ctx, KindSignup, fid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "h", got.HashedOTP)

	_, ok, err = s.Take(ctx, KindSignup, fid)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPut_Overwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	fid := NewFlowID()
	require.NoError(t, s.Put(ctx, KindRecovery, fid, Record{HashedOTP: "a"}, time.Minute))
	require.NoError(t, s.Put(ctx, KindRecovery, fid, Record{HashedOTP: "b", ResendCount: 1}, time.Minute))

	got, ok, err := s.Get(ctx, KindRecovery, fid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", got.HashedOTP)
	require.Equal(t, 1, got.ResendCount)
}

func TestPut_RejectsNonPositiveTTL(t *testing.T) {
	s, _ := newStore()
	require.ErrorIs(t, s.Put(context.Background(), KindSignup, "f", Record{}, 0), ErrInvalidTTL)
}

func TestRecordExpires(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	require.NoError(t, s.Put(ctx, KindSignup, "f", Record{}, 30*time.Millisecond))
	time.Sleep(80 * time.Millisecond)
	_, ok, err := s.Get(ctx, KindSignup, "f")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTake_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	require.NoError(t, s.Put(ctx, KindSignup, "f", Record{HashedOTP: "x"}, time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := s.Take(ctx, KindSignup, "f"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestReserveRelease(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()

	ok, err := s.Reserve(ctx, "signup:cooldown:x", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Reserve(ctx, "signup:cooldown:x", "1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Release(ctx, "signup:cooldown:x"))
	ok, err = s.Reserve(ctx, "signup:cooldown:x", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGet_CorruptRecordIsFault(t *testing.T) {
	ctx := context.Background()
	s, c := newStore()
	require.NoError(t, c.Set(ctx, "flow:signup:f", "{no-json", time.Minute))
	_, _, err := s.Get(ctx, KindSignup, "f")
	require.Error(t, err)
}
