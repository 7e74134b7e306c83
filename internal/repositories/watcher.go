package repositories

import "context"

// Collection names shared by every backend.
const (
	CollectionVideos     = "videos"
	CollectionCategories = "categories"
	CollectionSettings   = "settings"
)

// ChangeEvent reports that a catalog collection was written.
type ChangeEvent struct {
	Collection string
}

// Watcher streams catalog change events until ctx is cancelled. The returned
// channel is closed when the watcher stops.
type Watcher interface {
	Watch(ctx context.Context) (<-chan ChangeEvent, error)
}

// ChangeNotifier publishes a change event after a successful write.
type ChangeNotifier interface {
	Notify(ctx context.Context, collection string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

func notifierOrNop(n ChangeNotifier) ChangeNotifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
