package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ibrbtv/backend/internal/logging"
)

// WriteFailure describes a background store write that did not complete.
type WriteFailure struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Message   string    `json:"error"`
	At        time.Time `json:"at"`
}

const failureBuffer = 16

// Reporter fans background write failures out to interested listeners, such
// as the admin error stream.
type Reporter struct {
	mu      sync.Mutex
	subs    map[uint64]chan WriteFailure
	nextSub uint64
	now     func() time.Time
}

// NewReporter constructs an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{
		subs: make(map[uint64]chan WriteFailure),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Report logs the failure and delivers it to every subscriber that has room.
func (r *Reporter) Report(ctx context.Context, path, operation string, err error) {
	if r == nil || err == nil {
		return
	}
	failure := WriteFailure{Path: path, Operation: operation, Message: err.Error(), At: r.now()}

	logging.FromContext(ctx).Error("background write failed",
		slog.String("path", path),
		slog.String("operation", operation),
		slog.Any("error", err),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- failure:
		default:
		}
	}
}

// Subscribe registers a listener. The returned function unsubscribes it.
func (r *Reporter) Subscribe() (<-chan WriteFailure, func()) {
	ch := make(chan WriteFailure, failureBuffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			close(ch)
			r.mu.Unlock()
		})
	}
}
