package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
)

// ErrMiss is returned by a SharedStore that holds no snapshot
var ErrMiss = errors.New("snapshot not cached")

// Source produces the raw player rows for a new snapshot
type Source interface {
	FetchPlayerStats(ctx context.Context) ([]stats.PlayerStatRow, error)
}

// SharedStore keeps a copy of the loaded rows outside the process so that
// several dashboard instances can serve the same snapshot.
type SharedStore interface {
	Load(ctx context.Context) ([]stats.PlayerStatRow, time.Time, error)
	Save(ctx context.Context, rows []stats.PlayerStatRow, loadedAt time.Time) error
	Delete(ctx context.Context) error
}

// RefreshFunc is called after a user-triggered refresh completed
type RefreshFunc func(ctx context.Context, snapshot *Snapshot)

// Snapshot is one immutable, fully loaded dataset
type Snapshot struct {
	Version  int64
	Dataset  stats.Dataset
	Teams    []string
	LoadedAt time.Time
}

// SnapshotCache is the process-wide handle on the current Snapshot.
//
// The snapshot is populated by the first Get after construction or
// invalidation and is held until the next Invalidate, Refresh or Drop.
// Loads are serialized: readers arriving during a load wait for it and
// never observe a partially loaded dataset.
type SnapshotCache struct {
	source  Source
	shared  SharedStore
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
	version atomic.Int64

	listenersMu sync.RWMutex
	listeners   []RefreshFunc
}

// NewSnapshotCache creates a cache over source. shared may be nil.
func NewSnapshotCache(source Source, shared SharedStore) *SnapshotCache {
	return &SnapshotCache{
		source: source,
		shared: shared,
		now:    time.Now,
	}
}

// OnRefresh registers fn to be called after every successful Refresh
func (c *SnapshotCache) OnRefresh(fn RefreshFunc) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Get returns the current snapshot, loading one if none is held
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	if snapshot := c.current.Load(); snapshot != nil {
		return snapshot, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// Another reader may have finished loading while we waited
	if snapshot := c.current.Load(); snapshot != nil {
		return snapshot, nil
	}

	snapshot, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	c.current.Store(snapshot)

	return snapshot, nil
}

// Peek returns the current snapshot without loading. It is nil when
// nothing has been loaded since the last invalidation.
func (c *SnapshotCache) Peek() *Snapshot {
	return c.current.Load()
}

// Invalidate drops the memoized snapshot, locally and in the shared store.
// The next Get reloads from the source.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	return c.invalidateLocked(ctx)
}

// Drop discards the local snapshot only. It is used when another instance
// already refreshed the shared copy.
func (c *SnapshotCache) Drop() {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.current.Store(nil)
}

// Refresh invalidates the snapshot and loads a new one from the source,
// then notifies the OnRefresh listeners.
func (c *SnapshotCache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.loadMu.Lock()

	if err := c.invalidateLocked(ctx); err != nil {
		slog.Warn("Failed to delete shared snapshot", slog.String("error", err.Error()))
	}

	snapshot, err := c.load(ctx, false)
	if err != nil {
		c.loadMu.Unlock()
		return nil, err
	}
	c.current.Store(snapshot)
	c.loadMu.Unlock()

	c.listenersMu.RLock()
	listeners := append([]RefreshFunc(nil), c.listeners...)
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, snapshot)
	}

	return snapshot, nil
}

func (c *SnapshotCache) invalidateLocked(ctx context.Context) error {
	c.current.Store(nil)

	if c.shared == nil {
		return nil
	}

	return c.shared.Delete(ctx)
}

// load builds a snapshot, trying the shared store first when useShared is set
func (c *SnapshotCache) load(ctx context.Context, useShared bool) (*Snapshot, error) {
	if useShared && c.shared != nil {
		rows, loadedAt, err := c.shared.Load(ctx)
		switch {
		case err == nil:
			if snapshot, errBuild := c.build(rows, loadedAt); errBuild == nil {
				slog.Debug("Loaded stats snapshot from shared store", slog.Int("rows", len(rows)))
				return snapshot, nil
			}
		case !errors.Is(err, ErrMiss):
			slog.Warn("Failed to read shared snapshot", slog.String("error", err.Error()))
		}
	}

	start := c.now()
	rows, err := c.source.FetchPlayerStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch player stats: %w", err)
	}

	snapshot, err := c.build(rows, c.now())
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded stats snapshot", slog.Int("rows", snapshot.Dataset.Len()),
		slog.Int("teams", len(snapshot.Teams)), slog.Duration("took", c.now().Sub(start)))

	if c.shared != nil {
		if errSave := c.shared.Save(ctx, rows, snapshot.LoadedAt); errSave != nil {
			slog.Warn("Failed to save shared snapshot", slog.String("error", errSave.Error()))
		}
	}

	return snapshot, nil
}

func (c *SnapshotCache) build(rows []stats.PlayerStatRow, loadedAt time.Time) (*Snapshot, error) {
	dataset, err := stats.Load(rows)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Version:  c.version.Add(1),
		Dataset:  dataset,
		Teams:    stats.Teams(dataset),
		LoadedAt: loadedAt,
	}, nil
}
