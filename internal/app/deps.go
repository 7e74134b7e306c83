package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ibrbtv/backend/internal/admin"
	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/config"
	"github.com/ibrbtv/backend/internal/db"
	"github.com/ibrbtv/backend/internal/handlers"
	"github.com/ibrbtv/backend/internal/live"
	"github.com/ibrbtv/backend/internal/middleware"
	"github.com/ibrbtv/backend/internal/repositories"
	"github.com/ibrbtv/backend/internal/storage"
	"github.com/ibrbtv/backend/internal/summary"
	"github.com/ibrbtv/backend/internal/videos"
	"github.com/ibrbtv/backend/internal/viewer"
)

const (
	oembedTimeout        = 10 * time.Second
	resetTokenTTL        = time.Hour
	sessionPurgeInterval = 10 * time.Minute
)

// storeSet holds the repositories of one store driver.
type storeSet struct {
	Videos     repositories.VideoRepository
	Categories repositories.CategoryRepository
	Settings   repositories.SettingsRepository
	Users      repositories.AdminUserRepository
	Sessions   auth.SessionStore
	Watcher    repositories.Watcher
	Close      func(context.Context) error
}

// openStores connects to the configured store driver.
func openStores(ctx context.Context, cfg config.Config) (storeSet, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return storeSet{}, err
		}
		return postgresStores(pool), nil
	case config.StoreMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			return storeSet{}, err
		}
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return storeSet{}, err
		}
		return storeSet{
			Videos:     repositories.NewMongoVideoRepository(database),
			Categories: repositories.NewMongoCategoryRepository(database),
			Settings:   repositories.NewMongoSettingsRepository(database),
			Users:      repositories.NewMongoAdminUserRepository(database),
			Sessions:   repositories.NewMongoSessionStore(database),
			Watcher:    repositories.NewMongoWatcher(database),
			Close:      client.Disconnect,
		}, nil
	case config.StoreMemory:
		return memoryStores(repositories.NewMemoryStore()), nil
	default:
		return storeSet{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func postgresStores(pool db.Pool) storeSet {
	notifier := repositories.NewPostgresNotifier(pool)
	return storeSet{
		Videos:     repositories.NewPostgresVideoRepository(pool, notifier),
		Categories: repositories.NewPostgresCategoryRepository(pool, notifier),
		Settings:   repositories.NewPostgresSettingsRepository(pool, notifier),
		Users:      repositories.NewPostgresAdminUserRepository(pool),
		Sessions:   repositories.NewPostgresSessionStore(pool),
		Watcher:    repositories.NewPostgresWatcher(pool),
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}

func memoryStores(store *repositories.MemoryStore) storeSet {
	return storeSet{
		Videos:     store.Videos(),
		Categories: store.Categories(),
		Settings:   store.Settings(),
		Users:      store.AdminUsers(),
		Sessions:   auth.NewInMemorySessionStore(),
		Watcher:    store,
		Close:      func(context.Context) error { return nil },
	}
}

// services are the long-running components serve drives alongside the HTTP server.
type services struct {
	Hub      *live.Hub
	Viewers  *viewer.Registry
	Reporter *live.Reporter
	Sessions *auth.Manager
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, stores storeSet, cfg config.Config) (handlers.Dependencies, services, func(context.Context) error, error) {
	logger := slog.Default()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return handlers.Dependencies{}, services{}, nil, errors.New("jwt secret is required")
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return handlers.Dependencies{}, services{}, nil, fmt.Errorf("load timezone: %w", err)
	}

	var youtubeService *youtube.Service
	if key := strings.TrimSpace(cfg.YouTubeAPIKey); key != "" {
		youtubeService, err = youtube.NewService(ctx, option.WithAPIKey(key))
		if err != nil {
			return handlers.Dependencies{}, services{}, nil, fmt.Errorf("create youtube client: %w", err)
		}
	}

	titles, err := buildTitleProvider(cfg, youtubeService)
	if err != nil {
		return handlers.Dependencies{}, services{}, nil, err
	}

	var summaries admin.SummaryGenerator
	if youtubeService != nil && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		summaries = summary.Flow{
			Source:     &summary.TranscriptSource{Service: youtubeService},
			Summarizer: summary.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		}
	} else {
		logger.Info("ai summaries disabled", slog.Bool("hasYouTubeKey", youtubeService != nil), slog.Bool("hasOpenAIKey", cfg.OpenAIAPIKey != ""))
	}

	var images admin.ImageStore
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, services{}, nil, err
		}
		images = s3Storage
	}

	limiter, closeLimiter, err := buildLimiter(cfg)
	if err != nil {
		return handlers.Dependencies{}, services{}, nil, err
	}

	sessions := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL, stores.Sessions)
	reporter := live.NewReporter()
	hub := live.NewHub(stores.Videos, stores.Categories, stores.Settings, stores.Watcher, cfg.LiveTick)
	viewers := viewer.NewRegistry(viewer.Options{
		Recorder:      stores.Videos,
		Reporter:      reporter,
		IdleTTL:       cfg.ViewerIdleTTL,
		RecordTimeout: cfg.ViewRecordTimeout,
	})

	service := &admin.Service{
		Videos:     stores.Videos,
		Categories: stores.Categories,
		Settings:   stores.Settings,
		Titles:     titles,
		Summaries:  summaries,
		Images:     images,
		Profanity:  goaway.NewProfanityDetector(),
		Location:   location,
	}

	var pages http.Handler
	if dir := strings.TrimSpace(cfg.WebDir); dir != "" {
		pages = handlers.SinglePageApp(dir)
	}

	deps := handlers.Dependencies{
		Users:         stores.Users,
		Sessions:      sessions,
		Verifier:      sessions,
		Resets:        auth.NewResetTokens(resetTokenTTL),
		ResetNotifier: auth.LogResetNotifier{},
		Limiter:       limiter,
		Snapshots:     hub,
		Viewers:       viewers,
		Admin:         service,
		Failures:      reporter,
		Pages:         pages,
	}

	cleanup := func(ctx context.Context) error {
		viewers.Close()
		waitErr := viewers.Wait(ctx)
		return errors.Join(waitErr, closeLimiter(), stores.Close(ctx))
	}

	return deps, services{Hub: hub, Viewers: viewers, Reporter: reporter, Sessions: sessions}, cleanup, nil
}

// buildTitleProvider chains the configured title providers in order behind a cache.
func buildTitleProvider(cfg config.Config, youtubeService *youtube.Service) (videos.Provider, error) {
	var chain []videos.Provider
	for _, name := range cfg.TitleProviders {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
			continue
		case "oembed":
			chain = append(chain, videos.NewOEmbedProvider(cfg.OEmbedEndpoint, oembedTimeout))
		case "youtube":
			if youtubeService == nil {
				slog.Default().Info("youtube title provider skipped: no api key")
				continue
			}
			chain = append(chain, videos.NewYouTubeProvider(youtubeService))
		case "ytdlp", "yt-dlp":
			chain = append(chain, videos.NewYTDLPProvider(cfg.YTDLPPath, cfg.YTDLPTimeout))
		default:
			return nil, fmt.Errorf("unknown title provider %q", name)
		}
	}
	if len(chain) == 0 {
		return nil, errors.New("no title provider configured")
	}
	return videos.NewCachingProvider(videos.NewFallbackProvider(chain...), cfg.MetadataCacheTTL), nil
}

// buildLimiter returns a Redis-backed limiter when Redis is configured so
// every instance shares one budget, and a per-process limiter otherwise.
func buildLimiter(cfg config.Config) (middleware.RateLimiter, func() error, error) {
	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		limiter := middleware.NewRedisLimiter(client, "", cfg.RateLimitCount, cfg.RateLimitWindow, cfg.RateLimitBurst)
		return limiter, client.Close, nil
	}
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitCount, cfg.RateLimitWindow, cfg.RateLimitBurst, 10*cfg.RateLimitWindow)
	return limiter, func() error { return nil }, nil
}
