// Package live keeps the latest catalog snapshot in memory and pushes it to
// watch-page sessions whenever the store changes or the wall clock ticks.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/repositories"
)

// DefaultTick is how often snapshots are re-stamped so countdowns and
// schedule boundaries advance without a store change.
const DefaultTick = time.Minute

// Snapshot is an immutable view of the three catalog collections. Videos are
// in store order with IsLive resolved from Settings.LiveVideoID.
type Snapshot struct {
	Videos     []models.Video
	Categories []models.Category
	Settings   models.Settings
	Now        time.Time
	Version    uint64
}

// Hub loads snapshots and fans them out to subscribers.
type Hub struct {
	videos     repositories.VideoRepository
	categories repositories.CategoryRepository
	settings   repositories.SettingsRepository
	watcher    repositories.Watcher
	tick       time.Duration

	NowFunc func() time.Time

	mu      sync.RWMutex
	current Snapshot
	loaded  bool
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// NewHub constructs a hub. watcher may be nil, in which case only ticks and
// explicit Refresh calls publish.
func NewHub(videos repositories.VideoRepository, categories repositories.CategoryRepository, settings repositories.SettingsRepository, watcher repositories.Watcher, tick time.Duration) *Hub {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Hub{
		videos:     videos,
		categories: categories,
		settings:   settings,
		watcher:    watcher,
		tick:       tick,
		subs:       make(map[uint64]chan Snapshot),
	}
}

// Run subscribes to store changes, loads the first snapshot, then republishes on every change event and
// tick until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).With(slog.String("component", "live_hub"))

	var events <-chan repositories.ChangeEvent
	if h.watcher != nil {
		ch, err := h.watcher.Watch(ctx)
		if err != nil {
			return fmt.Errorf("start catalog watcher: %w", err)
		}
		events = ch
	}

	if err := h.Refresh(ctx); err != nil {
		logger.Error("initial snapshot load failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("catalog watcher stopped")
			}
			drained := drain(events)
			logger.Debug("catalog changed", slog.String("collection", event.Collection), slog.Int("coalesced", drained))
			if err := h.Refresh(ctx); err != nil {
				logger.Error("snapshot reload failed", slog.Any("error", err))
			}
		case <-ticker.C:
			h.Tick()
		}
	}
}

func drain(events <-chan repositories.ChangeEvent) int {
	n := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Refresh reloads every collection and publishes the result.
func (h *Hub) Refresh(ctx context.Context) error {
	snap, err := h.load(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	snap.Version = h.current.Version + 1
	h.current = snap
	h.loaded = true
	h.broadcastLocked()
	h.mu.Unlock()
	return nil
}

// Tick re-stamps the current snapshot with the wall clock and republishes it.
func (h *Hub) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return
	}
	h.current.Now = h.now()
	h.current.Version++
	h.broadcastLocked()
}

// Current returns the latest snapshot and whether one has been loaded.
func (h *Hub) Current() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.loaded
}

// Subscribe registers a subscriber. The channel holds at most one pending
// snapshot; a newer snapshot replaces an unread one. The returned function
// unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	if h.loaded {
		ch <- h.current
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcastLocked() {
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- h.current
	}
}

func (h *Hub) load(ctx context.Context) (Snapshot, error) {
	videos, err := h.videos.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list videos: %w", err)
	}
	categories, err := h.categories.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list categories: %w", err)
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}

	for i := range videos {
		videos[i].IsLive = settings.LiveVideoID != "" && videos[i].ID == settings.LiveVideoID
	}

	return Snapshot{
		Videos:     videos,
		Categories: categories,
		Settings:   settings,
		Now:        h.now(),
	}, nil
}

func (h *Hub) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
