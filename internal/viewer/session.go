// Package viewer holds per-visitor watch-page state: filter choices,
// selection, the shuffle seed, and countdown timers for scheduled videos.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ibrbtv/backend/internal/catalog"
	"github.com/ibrbtv/backend/internal/live"
	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/models"
)

var (
	// ErrUnknownVideo indicates the selected id is not in the current snapshot.
	ErrUnknownVideo = errors.New("video not found")
	// ErrNotYetAvailable indicates the selected video is still scheduled in the future.
	ErrNotYetAvailable = errors.New("video is not available yet")
	// ErrSessionClosed indicates the session was evicted or shut down.
	ErrSessionClosed = errors.New("viewer session closed")
)

// ViewRecorder increments a video's view counter.
type ViewRecorder interface {
	IncrementViews(ctx context.Context, id string) error
}

// FailureReporter receives background write failures.
type FailureReporter interface {
	Report(ctx context.Context, path, operation string, err error)
}

// Session is one visitor's watch-page state. It is safe for concurrent use.
type Session struct {
	ID string

	recorder      ViewRecorder
	reporter      FailureReporter
	recordTimeout time.Duration
	now           func() time.Time
	records       *sync.WaitGroup

	mu        sync.Mutex
	state     catalog.State
	seed      uint64
	requested string
	snapshot  live.Snapshot
	armed     map[string]armedCountdown
	lastSeen  time.Time
	closed    bool
	listeners map[uint64]chan struct{}
	nextID    uint64
}

type armedCountdown struct {
	target time.Time
	timer  *time.Timer
}

func newSession(id string, seed uint64, cfg sessionConfig) *Session {
	s := &Session{
		ID:            id,
		recorder:      cfg.recorder,
		reporter:      cfg.reporter,
		recordTimeout: cfg.recordTimeout,
		now:           cfg.now,
		records:       cfg.records,
		seed:          seed,
		armed:         make(map[string]armedCountdown),
		listeners:     make(map[uint64]chan struct{}),
		state: catalog.State{
			SelectedCategory: catalog.AllCategories,
			Acknowledged:     make(map[string]struct{}),
		},
	}
	s.lastSeen = s.now()
	return s
}

// Request records a deep-link selection. It is applied on the next derivation
// in which the video exists and is not upcoming, and counts as a view of a
// non-live video.
func (s *Session) Request(videoID string) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return
	}
	s.mu.Lock()
	s.requested = videoID
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// View derives the watch page for snap and remembers snap as the session's
// latest snapshot.
func (s *Session) View(snap live.Snapshot) catalog.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.lastSeen = s.now()
	return s.deriveLocked()
}

// Current re-derives against the latest snapshot the session has seen.
func (s *Session) Current() catalog.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
	return s.deriveLocked()
}

// Select binds a video chosen by the visitor. Non-live selections count as a
// view; the increment runs in the background and never delays the response.
func (s *Session) Select(ctx context.Context, videoID string) (catalog.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return catalog.View{}, ErrSessionClosed
	}
	s.lastSeen = s.now()

	video, ok := s.findLocked(videoID)
	if !ok {
		return catalog.View{}, ErrUnknownVideo
	}
	if video.IsScheduledAfter(s.now()) {
		return catalog.View{}, ErrNotYetAvailable
	}

	delete(s.state.Acknowledged, video.ID)
	s.disarmLocked(video.ID)
	s.requested = ""
	s.state.SelectedID = video.ID
	s.state.Explicit = true

	view := s.deriveLocked()
	if view.SelectedID != video.ID {
		// Hidden by the current filters: bind it like a deep link, which
		// switches the category, clears a hiding search and records the view.
		s.requested = video.ID
		view = s.deriveLocked()
	} else if !video.IsLive {
		s.recordView(ctx, video.ID)
	}
	s.notifyLocked()
	return view, nil
}

// SetFilter updates the category and/or search term. A nil argument leaves
// that part of the filter unchanged; an empty category means all categories.
func (s *Session) SetFilter(category, search *string) catalog.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()

	if category != nil {
		c := strings.TrimSpace(*category)
		if c == "" {
			c = catalog.AllCategories
		}
		s.state.SelectedCategory = c
	}
	if search != nil {
		s.state.SearchTerm = *search
	}

	view := s.deriveLocked()
	s.notifyLocked()
	return view
}

// Changes returns a channel signalled whenever session state changes outside
// of a snapshot delivery, such as a countdown completing. The returned
// function releases the listener.
func (s *Session) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.lastSeen = s.now()
			s.mu.Unlock()
		})
	}
}

// Close stops every countdown timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id := range s.armed {
		s.disarmLocked(id)
	}
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen), len(s.listeners) > 0
}

func (s *Session) deriveLocked() catalog.View {
	now := s.now()

	for id, countdown := range s.armed {
		if !now.Before(countdown.target) {
			s.state.Acknowledged[id] = struct{}{}
			s.disarmLocked(id)
		}
	}
	for id := range s.state.Acknowledged {
		if _, ok := s.findLocked(id); !ok {
			delete(s.state.Acknowledged, id)
		}
	}

	view := catalog.Derive(catalog.Input{
		Videos:      s.snapshot.Videos,
		Categories:  s.snapshot.Categories,
		Now:         now,
		State:       s.state,
		RequestedID: s.requested,
		Seed:        s.seed,
	})

	s.state.SelectedID = view.SelectedID
	s.state.Explicit = view.Explicit
	s.state.SelectedCategory = view.SelectedCategory
	s.state.SearchTerm = view.SearchTerm
	if view.RequestApplied {
		s.requested = ""
		if view.Current != nil && !view.Current.IsLive {
			s.recordView(context.Background(), view.Current.ID)
		}
	}

	if !s.closed {
		s.armLocked(view.Upcoming)
	}
	return view
}

func (s *Session) armLocked(upcoming []catalog.UpcomingEntry) {
	pending := make(map[string]time.Time, len(upcoming))
	for _, entry := range upcoming {
		if entry.Available || entry.Video.ScheduledAt == nil || entry.StartsIn <= 0 {
			continue
		}
		pending[entry.Video.ID] = *entry.Video.ScheduledAt
	}

	for id, countdown := range s.armed {
		if target, ok := pending[id]; !ok || !target.Equal(countdown.target) {
			s.disarmLocked(id)
		}
	}

	for id, target := range pending {
		if _, ok := s.armed[id]; ok {
			continue
		}
		id := id
		s.armed[id] = armedCountdown{
			target: target,
			timer:  time.AfterFunc(target.Sub(s.now()), func() { s.countdownDone(id, target) }),
		}
	}
}

func (s *Session) disarmLocked(id string) {
	if countdown, ok := s.armed[id]; ok {
		countdown.timer.Stop()
		delete(s.armed, id)
	}
}

func (s *Session) countdownDone(id string, target time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	countdown, ok := s.armed[id]
	if !ok || !countdown.target.Equal(target) {
		return
	}
	delete(s.armed, id)
	s.state.Acknowledged[id] = struct{}{}
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	for _, ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) findLocked(id string) (models.Video, bool) {
	for _, v := range s.snapshot.Videos {
		if v.ID == id {
			return v, true
		}
	}
	return models.Video{}, false
}

func (s *Session) recordView(ctx context.Context, videoID string) {
	if s.recorder == nil {
		return
	}
	logger := logging.FromContext(ctx)

	s.records.Add(1)
	go func() {
		defer s.records.Done()
		recordCtx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logger), s.recordTimeout)
		defer cancel()

		if err := s.recorder.IncrementViews(recordCtx, videoID); err != nil {
			if s.reporter != nil {
				s.reporter.Report(recordCtx, "videos/"+videoID, "increment_views", err)
				return
			}
			logger.Error("record view failed", slog.String("video_id", videoID), slog.Any("error", err))
		}
	}()
}
