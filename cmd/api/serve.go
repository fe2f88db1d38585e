package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/config"
	"github.com/iamasit07/guess-master/backend/internal/repository/memory"
	"github.com/iamasit07/guess-master/backend/internal/repository/postgres"
	redisrepo "github.com/iamasit07/guess-master/backend/internal/repository/redis"
	"github.com/iamasit07/guess-master/backend/internal/service/chat"
	"github.com/iamasit07/guess-master/backend/internal/service/cleanup"
	"github.com/iamasit07/guess-master/backend/internal/service/game"
	"github.com/iamasit07/guess-master/backend/internal/service/profile"
	transportHttp "github.com/iamasit07/guess-master/backend/internal/transport/http"
	"github.com/iamasit07/guess-master/backend/internal/transport/http/middleware"
	"github.com/iamasit07/guess-master/backend/internal/transport/websocket"
	"github.com/iamasit07/guess-master/backend/pkg/auth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Load(v))
		},
	}
}

// storage is the set of repositories the services run on
type storage struct {
	db       *sql.DB
	sessions interface {
		game.SessionStore
		chat.SessionFinder
	}
	messages chat.MessageStore
	users    profile.UserRepository
	// learns profiles from access tokens when there is no users table
	sink middleware.ProfileSink
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Str("component", "storage").Msg("DATABASE_URL not set, using in-memory storage")
		profiles := memory.NewProfileStore()
		return &storage{
			sessions: memory.NewSessionStore(),
			messages: memory.NewMessageStore(),
			users:    profiles,
			sink:     profiles,
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:       cfg.DBMaxOpenConns,
		MaxIdleConns:       cfg.DBMaxIdleConns,
		ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("component", "storage").Msg("running database migrations")
	if err := postgres.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		db:       db,
		sessions: postgres.NewSessionRepo(db),
		messages: postgres.NewMessageRepo(db),
		users:    postgres.NewUserRepo(db),
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if store.db != nil {
		defer store.db.Close()
	}

	var cache profile.CacheRepository
	if client := redisrepo.Connect(ctx, cfg.RedisURL, cfg.RedisPassword); client != nil {
		defer client.Close()
		cache = redisrepo.NewCache(client, "guess-master:")
	}
	profiles := profile.NewResolver(store.users, cache, cfg.ProfileCacheTTL)

	chatService := chat.NewService(store.messages, store.sessions, profiles)
	gameService := game.NewService(store.sessions, profiles, chatService, game.Options{
		RoundDuration:     cfg.RoundDuration,
		RetryInterval:     cfg.RetryInterval,
		MaxTimeoutRetries: cfg.MaxTimeoutRetries,
	})
	defer gameService.Shutdown()

	tokens := auth.NewTokenManager(cfg.JWTSecret, 0)
	hub := websocket.NewHub()
	gameService.AttachBroadcaster(hub)
	chatService.AttachBroadcaster(hub)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go cleanup.NewWorker(gameService, cfg.SweepInterval).Start(workerCtx)

	var pinger transportHttp.Pinger
	if store.db != nil {
		pinger = store.db
	}
	wsHandler := websocket.NewHandler(hub, tokens, gameService, cfg.AllowedOrigins)
	guessLimiter := middleware.NewUserRateLimiter(rate.Limit(cfg.GuessRatePerSec), cfg.GuessBurst)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	transportHttp.Routes{
		Games:      transportHttp.NewGameHandler(gameService, cfg.FrontendURL),
		Messages:   transportHttp.NewMessageHandler(chatService),
		Auth:       middleware.AuthMiddleware(tokens, store.sink),
		GuessLimit: guessLimiter.Middleware(),
		WebSocket:  wsHandler.HandleWebSocket,
		Health:     transportHttp.Health(pinger),
	}.Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("component", "http").Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Str("component", "http").Msg("server is shutting down")

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("component", "http").Msg("server forced to shutdown")
		return err
	}

	log.Info().Str("component", "http").Msg("server exited gracefully")
	return nil
}
