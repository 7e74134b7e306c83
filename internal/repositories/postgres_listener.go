package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ibrbtv/backend/internal/db"
	"github.com/ibrbtv/backend/internal/logging"
)

// CatalogChannel is the LISTEN/NOTIFY channel carrying catalog change events.
const CatalogChannel = "catalog_changes"

// PostgresNotifier publishes change events with pg_notify.
type PostgresNotifier struct {
	pool db.Pool
}

// NewPostgresNotifier constructs a notifier that publishes on CatalogChannel.
func NewPostgresNotifier(pool db.Pool) *PostgresNotifier {
	return &PostgresNotifier{pool: pool}
}

// Notify publishes collection on the catalog channel. Failures are logged;
// the write that triggered the notification has already succeeded.
func (n *PostgresNotifier) Notify(ctx context.Context, collection string) {
	logger := logging.FromContext(ctx)

	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		logger.Warn("change notification skipped", slog.String("collection", collection), slog.Any("error", err))
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_notify($1, $2)`, CatalogChannel, collection); err != nil {
		logger.Warn("change notification failed", slog.String("collection", collection), slog.Any("error", err))
	}
}

// PostgresWatcher listens on CatalogChannel on a dedicated connection.
type PostgresWatcher struct {
	pool       db.Pool
	RetryDelay time.Duration
}

// NewPostgresWatcher constructs a watcher using a connection from pool.
func NewPostgresWatcher(pool db.Pool) *PostgresWatcher {
	return &PostgresWatcher{pool: pool, RetryDelay: 2 * time.Second}
}

// Watch holds a connection in LISTEN mode and forwards notifications. Lost
// connections are re-established after RetryDelay until ctx ends.
func (w *PostgresWatcher) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	if w == nil || w.pool == nil {
		return nil, errors.New("postgres watcher: pool is required")
	}

	events := make(chan ChangeEvent, 16)
	go func() {
		defer close(events)
		logger := logging.FromContext(ctx)

		for {
			err := w.listen(ctx, events)
			if ctx.Err() != nil {
				return
			}
			logger.Warn("catalog listener interrupted", slog.Any("error", err), slog.Duration("retry_in", w.RetryDelay))

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

func (w *PostgresWatcher) listen(ctx context.Context, events chan<- ChangeEvent) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{CatalogChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", CatalogChannel, err)
	}

	// A reconnect may have missed notifications; make subscribers reload.
	for _, collection := range []string{CollectionVideos, CollectionCategories, CollectionSettings} {
		select {
		case events <- ChangeEvent{Collection: collection}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		select {
		case events <- ChangeEvent{Collection: notification.Payload}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ Watcher = (*PostgresWatcher)(nil)
var _ ChangeNotifier = (*PostgresNotifier)(nil)
