package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/stretchr/testify/require"
)

// fakeSource counts fetches and optionally blocks until released
type fakeSource struct {
	mu      sync.Mutex
	rows    []stats.PlayerStatRow
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeSource) FetchPlayerStats(ctx context.Context) ([]stats.PlayerStatRow, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rows, f.err
}

func (f *fakeSource) set(rows []stats.PlayerStatRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

// memoryStore is an in-process SharedStore
type memoryStore struct {
	mu       sync.Mutex
	rows     []stats.PlayerStatRow
	loadedAt time.Time
	ok       bool
	loadErr  error
	deletes  int
}

func (m *memoryStore) Load(_ context.Context) ([]stats.PlayerStatRow, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, time.Time{}, m.loadErr
	}
	if !m.ok {
		return nil, time.Time{}, cache.ErrMiss
	}
	return m.rows, m.loadedAt, nil
}

func (m *memoryStore) Save(_ context.Context, rows []stats.PlayerStatRow, loadedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.loadedAt, m.ok = rows, loadedAt, true
	return nil
}

func (m *memoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.ok = nil, false
	m.deletes++
	return nil
}

var testRows = []stats.PlayerStatRow{
	{Name: "Ana", Team: "Red", Goals: 3, Assists: 1},
	{Name: "Bo", Team: "Blue", Goals: 5, Assists: 0},
	{Name: "Cy", Team: "Red", Goals: 5, Assists: 2},
}

func TestGet_LoadsOnceAndMemoizes(t *testing.T) {
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, nil)
	ctx := context.Background()

	require.Nil(t, c.Peek())

	first, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, first.Dataset.Len())
	require.Equal(t, []string{"Red", "Blue"}, first.Teams)
	require.False(t, first.LoadedAt.IsZero())

	second, err := c.Get(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int32(1), source.calls.Load())
	require.Same(t, first, c.Peek())
}

func TestGet_EmptySourceIsNotMemoized(t *testing.T) {
	source := &fakeSource{}
	c := cache.NewSnapshotCache(source, nil)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.ErrorIs(t, err, stats.ErrEmptyDataset)
	require.Nil(t, c.Peek())

	source.set(testRows)
	snapshot, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.Dataset.Len())
	require.Equal(t, int32(2), source.calls.Load())
}

func TestGet_SourceError(t *testing.T) {
	boom := errors.New("connection refused")
	c := cache.NewSnapshotCache(&fakeSource{err: boom}, nil)

	_, err := c.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestGet_ConcurrentReadersShareOneLoad(t *testing.T) {
	source := &fakeSource{rows: testRows, release: make(chan struct{})}
	c := cache.NewSnapshotCache(source, nil)

	const readers = 16
	results := make([]*cache.Snapshot, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := c.Get(context.Background())
			if err == nil {
				results[i] = snapshot
			}
		}(i)
	}

	// Let every reader queue up behind the first load before releasing it.
	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()

	require.Equal(t, int32(1), source.calls.Load())
	for _, snapshot := range results {
		require.Same(t, results[0], snapshot)
	}
}

func TestInvalidate_ReloadsOnNextRead(t *testing.T) {
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, nil)
	ctx := context.Background()

	first, err := c.Get(ctx)
	require.NoError(t, err)

	source.set(testRows[:1])
	require.NoError(t, c.Invalidate(ctx))
	require.Nil(t, c.Peek())

	second, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, second.Dataset.Len())
	require.Greater(t, second.Version, first.Version)

	// The first snapshot is untouched by the reload.
	require.Equal(t, 3, first.Dataset.Len())
}

func TestRefresh_NotifiesListeners(t *testing.T) {
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, nil)
	ctx := context.Background()

	var notified []*cache.Snapshot
	c.OnRefresh(func(_ context.Context, snapshot *cache.Snapshot) {
		notified = append(notified, snapshot)
	})

	_, err := c.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, notified)

	refreshed, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, []*cache.Snapshot{refreshed}, notified)
	require.Same(t, refreshed, c.Peek())
	require.Equal(t, int32(2), source.calls.Load())
}

func TestRefresh_EmptySourceLeavesNoSnapshot(t *testing.T) {
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, nil)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.NoError(t, err)

	source.set(nil)
	_, err = c.Refresh(ctx)
	require.ErrorIs(t, err, stats.ErrEmptyDataset)
	require.Nil(t, c.Peek())
}

func TestSharedStore_HitSkipsSource(t *testing.T) {
	loadedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	shared := &memoryStore{rows: testRows, loadedAt: loadedAt, ok: true}
	source := &fakeSource{rows: testRows[:1]}
	c := cache.NewSnapshotCache(source, shared)

	snapshot, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.Dataset.Len())
	require.Equal(t, loadedAt, snapshot.LoadedAt)
	require.Equal(t, int32(0), source.calls.Load())
}

func TestSharedStore_MissAndErrorFallBackToSource(t *testing.T) {
	shared := &memoryStore{}
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, shared)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), source.calls.Load())
	require.True(t, shared.ok, "loaded rows are saved to the shared store")

	shared.loadErr = errors.New("redis down")
	c.Drop()
	_, err = c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), source.calls.Load())
}

func TestRefresh_BypassesSharedStore(t *testing.T) {
	shared := &memoryStore{rows: testRows[:1], ok: true}
	source := &fakeSource{rows: testRows}
	c := cache.NewSnapshotCache(source, shared)

	snapshot, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.Dataset.Len())
	require.Equal(t, 1, shared.deletes)
	require.Equal(t, testRows, shared.rows)
}

func TestDrop_KeepsSharedCopy(t *testing.T) {
	source := &fakeSource{rows: testRows}
	shared := &memoryStore{}
	c := cache.NewSnapshotCache(source, shared)
	ctx := context.Background()

	first, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), source.calls.Load())

	c.Drop()
	require.Nil(t, c.Peek())
	require.Zero(t, shared.deletes)

	second, err := c.Get(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 3, second.Dataset.Len())
	require.Equal(t, int32(1), source.calls.Load())
}
