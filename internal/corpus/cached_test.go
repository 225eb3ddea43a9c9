package corpus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type countingProvider struct {
	entries []dedup.Entry
	err     error
	calls   atomic.Int32
	delay   time.Duration
}

func (p *countingProvider) RecordsForType(_ context.Context, _ string) ([]dedup.Entry, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.entries, p.err
}

func createTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func createTestEntries() []dedup.Entry {
	return []dedup.Entry{
		{ID: "rec-1", Record: createTestRecord("Jon")},
		{ID: "rec-2", Record: createTestRecord("Maria")},
	}
}

// ==========================
// Cached Tests
// ==========================

func TestCached_ReadThroughThenHit(t *testing.T) {
	mr, rdb := createTestRedis(t)
	next := &countingProvider{entries: createTestEntries()}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	first, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	second, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("dedup:corpus:INDIVIDUAL"))
	assert.Equal(t, time.Minute, mr.TTL("dedup:corpus:INDIVIDUAL"))
}

func TestCached_ExpiryReloads(t *testing.T) {
	mr, rdb := createTestRedis(t)
	next := &countingProvider{entries: createTestEntries()}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCached_Invalidate(t *testing.T) {
	mr, rdb := createTestRedis(t)
	next := &countingProvider{entries: createTestEntries()}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(context.Background(), "INDIVIDUAL"))
	assert.False(t, mr.Exists("dedup:corpus:INDIVIDUAL"))

	_, err = cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCached_EmptyCorpusIsCached(t *testing.T) {
	_, rdb := createTestRedis(t)
	next := &countingProvider{}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	for i := 0; i < 2; i++ {
		entries, err := cached.RecordsForType(context.Background(), "HOUSEHOLD")
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCached_CorruptEntryIsReplaced(t *testing.T) {
	mr, rdb := createTestRedis(t)
	require.NoError(t, mr.Set("dedup:corpus:INDIVIDUAL", "not json"))
	next := &countingProvider{entries: createTestEntries()}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	entries, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCached_RedisFailureBypassesCache(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectGet("dedup:corpus:INDIVIDUAL").SetErr(errors.New("redis down"))

	next := &countingProvider{entries: createTestEntries()}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	entries, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCached_ProviderErrorIsReturned(t *testing.T) {
	mr, rdb := createTestRedis(t)
	next := &countingProvider{err: errors.New("connection refused")}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.Error(t, err)
	assert.False(t, mr.Exists("dedup:corpus:INDIVIDUAL"))
}

func TestCached_ConcurrentMissesLoadOnce(t *testing.T) {
	_, rdb := createTestRedis(t)
	next := &countingProvider{entries: createTestEntries(), delay: 50 * time.Millisecond}
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
			assert.NoError(t, err)
			assert.Len(t, entries, 2)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, next.calls.Load(), int32(2))
}

// blockingProvider holds every load until release is closed or the load
// context ends.
type blockingProvider struct {
	entries []dedup.Entry
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{
		entries: createTestEntries(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *blockingProvider) RecordsForType(ctx context.Context, _ string) ([]dedup.Entry, error) {
	p.calls.Add(1)
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
		return p.entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCached_CancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	mr, rdb := createTestRedis(t)
	next := newBlockingProvider()
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cached.RecordsForType(ctx, "INDIVIDUAL")
		firstErr <- err
	}()

	<-next.started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(next.release)
	assert.Eventually(t, func() bool {
		return mr.Exists("dedup:corpus:INDIVIDUAL")
	}, time.Second, 5*time.Millisecond)

	entries, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCached_SharedLoadIsBoundedByLoadTimeout(t *testing.T) {
	_, rdb := createTestRedis(t)
	next := newBlockingProvider()
	cached := NewCached(next, rdb, time.Minute, logger.NewTestLogger(t))
	cached.loadTimeout = 20 * time.Millisecond

	_, err := cached.RecordsForType(context.Background(), "INDIVIDUAL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
