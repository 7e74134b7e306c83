package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ibrbtv/backend/internal/logging"
)

// MongoWatcher turns a database change stream over the catalog collections
// into change events. Change streams need a replica set.
type MongoWatcher struct {
	database   *mongo.Database
	RetryDelay time.Duration
}

// NewMongoWatcher constructs a watcher over database.
func NewMongoWatcher(database *mongo.Database) *MongoWatcher {
	return &MongoWatcher{database: database, RetryDelay: 2 * time.Second}
}

// Watch opens the change stream and reopens it after failures until ctx ends.
func (w *MongoWatcher) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	if w == nil || w.database == nil {
		return nil, errors.New("mongo watcher: database is required")
	}

	events := make(chan ChangeEvent, 16)
	go func() {
		defer close(events)
		logger := logging.FromContext(ctx)

		for {
			err := w.stream(ctx, events)
			if ctx.Err() != nil {
				return
			}
			logger.Warn("catalog change stream interrupted", slog.Any("error", err), slog.Duration("retry_in", w.RetryDelay))

			timer := time.NewTimer(w.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return events, nil
}

func (w *MongoWatcher) stream(ctx context.Context, events chan<- ChangeEvent) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "ns.coll", Value: bson.D{{Key: "$in", Value: bson.A{CollectionVideos, CollectionCategories, CollectionSettings}}}},
		}}},
	}

	cs, err := w.database.Watch(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer cs.Close(context.Background())

	for _, collection := range []string{CollectionVideos, CollectionCategories, CollectionSettings} {
		select {
		case events <- ChangeEvent{Collection: collection}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for cs.Next(ctx) {
		var change struct {
			NS struct {
				Coll string `bson:"coll"`
			} `bson:"ns"`
		}
		if err := cs.Decode(&change); err != nil {
			return fmt.Errorf("decode change event: %w", err)
		}

		select {
		case events <- ChangeEvent{Collection: change.NS.Coll}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := cs.Err(); err != nil {
		return fmt.Errorf("change stream: %w", err)
	}
	return errors.New("change stream closed")
}

var _ Watcher = (*MongoWatcher)(nil)
