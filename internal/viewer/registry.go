package viewer

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrbtv/backend/internal/logging"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultRecordTimeout = 30 * time.Second
)

// Options configures a Registry.
type Options struct {
	Recorder      ViewRecorder
	Reporter      FailureReporter
	IdleTTL       time.Duration
	RecordTimeout time.Duration
	NowFunc       func() time.Time
}

type sessionConfig struct {
	recorder      ViewRecorder
	reporter      FailureReporter
	recordTimeout time.Duration
	now           func() time.Time
	records       *sync.WaitGroup
}

// Registry tracks viewer sessions by id and evicts idle ones.
type Registry struct {
	cfg     sessionConfig
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	records  sync.WaitGroup
}

// NewRegistry constructs a registry.
func NewRegistry(opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = defaultRecordTimeout
	}
	if opts.NowFunc == nil {
		opts.NowFunc = func() time.Time { return time.Now().UTC() }
	}
	r := &Registry{
		idleTTL:  opts.IdleTTL,
		sessions: make(map[string]*Session),
	}
	r.cfg = sessionConfig{
		recorder:      opts.Recorder,
		reporter:      opts.Reporter,
		recordTimeout: opts.RecordTimeout,
		now:           opts.NowFunc,
		records:       &r.records,
	}
	return r
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Open returns the session for id, creating a fresh one when id is empty or
// unknown. The boolean reports whether a new session was created.
func (r *Registry) Open(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && id != "" {
		return s, false
	}
	s := newSession(uuid.NewString(), rand.Uint64(), r.cfg)
	r.sessions[s.ID] = s
	return s, true
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL that have no open
// streams. It returns the number evicted.
func (r *Registry) Sweep() int {
	now := r.cfg.now()

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		idle, streaming := s.idleSince(now)
		if streaming || idle < r.idleTTL {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, s)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}

// Run sweeps idle sessions until ctx is cancelled, then closes every session.
func (r *Registry) Run(ctx context.Context) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug("evicted idle viewer sessions", slog.Int("count", n))
			}
		}
	}
}

// Close stops every session's timers and forgets them.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Wait blocks until in-flight view recordings finish or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.records.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
