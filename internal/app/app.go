package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/config"
	"github.com/ibrbtv/backend/internal/db"
	"github.com/ibrbtv/backend/internal/handlers"
	"github.com/ibrbtv/backend/internal/httpserver"
	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/middleware"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/repositories"
)

// AdminPasswordEnv supplies the password for create-admin when it is not
// passed as an argument.
const AdminPasswordEnv = "IBRBTV_ADMIN_PASSWORD"

// Run bootstraps the I.B.R.B TV backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, or create-admin")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:])
	case "seed":
		return runSeed(ctx, cfg, args[1:])
	case "create-admin":
		return createAdmin(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.FromContext(ctx)

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}

	deps, svc, cleanup, err := buildDependencies(ctx, stores, cfg)
	if err != nil {
		_ = stores.Close(ctx)
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	background, bgCtx := errgroup.WithContext(runCtx)
	background.Go(func() error {
		return svc.Hub.Run(bgCtx)
	})
	background.Go(func() error {
		svc.Viewers.Run(bgCtx)
		return nil
	})
	background.Go(func() error {
		purgeSessions(bgCtx, svc.Sessions, sessionPurgeInterval)
		return nil
	})

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler, logger)

	logger.Info("starting http server", slog.String("addr", srv.Addr()), slog.String("store", cfg.Store))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	bgErr := make(chan error, 1)
	go func() {
		bgErr <- background.Wait()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var runErr error
	backgroundDone := false
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case err := <-bgErr:
		backgroundDone = true
		if err != nil {
			logger.Error("background worker stopped", slog.Any("error", err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	stop()
	if !backgroundDone {
		<-bgErr
	}

	return errors.Join(runErr, shutdownErr, cleanup(shutdownCtx))
}

// purgeSessions drops expired refresh sessions on every interval tick.
func purgeSessions(ctx context.Context, sessions *auth.Manager, interval time.Duration) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := sessions.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", slog.Any("error", err))
				continue
			}
			if purged > 0 {
				logger.Debug("purged expired sessions", slog.Int64("count", purged))
			}
		}
	}
}

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func runMigrations(ctx context.Context, cfg config.Config, args []string) error {
	switch cfg.Store {
	case config.StoreMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			return err
		}
		fmt.Println("ensured mongo indexes")
		return nil
	case config.StoreMemory:
		return errors.New("the memory store has no schema to migrate")
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	migrationDir, err := resolveDir(cfg.MigrationDir)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		migrations = append(migrations, entry.Name())
	}

	sort.Strings(migrations)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	switch command {
	case "status":
		for _, name := range migrations {
			if _, ok := applied[name]; ok {
				fmt.Printf("[x] %s\n", name)
			} else {
				fmt.Printf("[ ] %s\n", name)
			}
		}
		return nil
	case "up", "":
		if len(migrations) == 0 {
			fmt.Println("no migrations to apply")
			return nil
		}

		for _, name := range migrations {
			if _, ok := applied[name]; ok {
				continue
			}

			contents, err := os.ReadFile(filepath.Join(migrationDir, name))
			if err != nil {
				return fmt.Errorf("read migration %s: %w", name, err)
			}

			if err := applyMigrationWithRetry(ctx, conn, name, string(contents)); err != nil {
				return err
			}

			fmt.Printf("applied migration %s\n", name)
		}
		return nil
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("seeds are SQL files and need the postgres store, not %q", cfg.Store)
	}

	seedDir, err := resolveDir(cfg.SeedDir)
	if err != nil {
		return err
	}

	seedName := args[0]
	if !strings.HasSuffix(seedName, ".sql") {
		seedName = fmt.Sprintf("%s_seed.sql", seedName)
	}

	contents, err := os.ReadFile(filepath.Join(seedDir, seedName))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", seedName, err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", seedName, err)
	}

	fmt.Printf("applied seed %s\n", seedName)
	return nil
}

// createAdmin provisions an administrator account. Accounts are only ever
// created from the command line.
func createAdmin(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("expected admin email; the password comes from the second argument or %s", AdminPasswordEnv)
	}

	password := os.Getenv(AdminPasswordEnv)
	if len(args) > 1 {
		password = args[1]
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close(context.Background()) }()

	user, err := newAdminUser(args[0], password, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return fmt.Errorf("admin %s already exists", user.Email)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("created admin %s\n", user.Email)
	return nil
}

func newAdminUser(rawEmail, password string, now time.Time) (models.AdminUser, error) {
	email, err := auth.NormalizeEmail(rawEmail)
	if err != nil {
		return models.AdminUser{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.AdminUser{}, err
	}
	return models.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

func applyMigrationWithRetry(ctx context.Context, conn *pgxpool.Conn, name string, contents string) error {
	logger := logging.FromContext(ctx)

	var attempt int
	for attempt = 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			timer.Stop()
		}

		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin migration transaction for %s: %w", name, err)
		}

		step, err := applyMigration(ctx, tx, name, contents)
		if err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
				logger.Warn("transient migration error", slog.String("migration", name), slog.String("step", step), slog.Int("attempt", attempt+1), slog.Any("error", err))
				continue
			}
			return fmt.Errorf("%s migration %s: %w", step, name, err)
		}

		return nil
	}

	return fmt.Errorf("apply migration %s: exceeded max retries (%d)", name, attempt)
}

// applyMigration runs one migration inside tx and reports the step that failed.
func applyMigration(ctx context.Context, tx pgx.Tx, name, contents string) (string, error) {
	if _, err := tx.Exec(ctx, contents); err != nil {
		return "apply", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return "record", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "commit", err
	}
	return "", nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	return errors.Is(err, pgx.ErrTxClosed)
}
