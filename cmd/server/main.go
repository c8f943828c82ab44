package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"stream-lab/auth"
	"stream-lab/backends"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/errors"
	"stream-lab/ingestion"
	"stream-lab/internal"
	"stream-lab/repositories"
	"stream-lab/runtime"
	"stream-lab/runtime/workers"
	"stream-lab/server"
	"stream-lab/services"
	"stream-lab/sink"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream-lab terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (badger, bluge, redis, postgres) ahead of os.Exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogLoader := internal.NewCatalogLoader(config.CatalogPath, logger)
	catalog, err := catalogLoader.Load()
	if err != nil {
		return exitConfig, fmt.Errorf("catalog error: %w", err)
	}

	// 2. Storage (BadgerDB & Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	chatIndex := repositories.NewChatIndex(blugeWriter, logger)
	defer func() {
		logger.Info("Closing Bluge...")
		_ = chatIndex.Close()
	}()

	storage := runtime.Storage{
		Viewers:  repositories.NewViewerRepository(db),
		Ledger:   repositories.NewLedgerRepository(db),
		Messages: repositories.NewMessageRepository(db, logger, config.LimitMessages),
		Buckets:  repositories.NewBucketRepository(db, config.BucketTTL),
		Search:   chatIndex,
	}

	// 3. Supervision & Orchestration
	supervisor := workers.NewSupervisor(logger)
	orchestrator, err := runtime.NewOrchestrator(logger, supervisor, runtimeConfig(config, charReplacement, catalog), storage)
	if err != nil {
		return exitRuntime, fmt.Errorf("orchestrator init failed: %w", err)
	}
	if config.CatalogPath != "" {
		catalogLoader.Watch(orchestrator.ApplyCatalog)
	}
	if config.MusicBackendURL != "" {
		orchestrator.WithBackend(domain.QueueMusic, backends.NewWebhookBackend(config.MusicBackendURL, config.BackendToken, config.BackendTimeout, logger))
	}
	if config.TTSBackendURL != "" {
		orchestrator.WithBackend(domain.QueueTTS, backends.NewWebhookBackend(config.TTSBackendURL, config.BackendToken, config.BackendTimeout, logger))
	}

	sources, cleanup, err := prepareSources(config, orchestrator, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer cleanup()

	if config.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, config.PostgresDSN)
		if err != nil {
			return exitRuntime, fmt.Errorf("postgres connection failed: %w", err)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, sink.CreateChatLines); err != nil {
			return exitRuntime, fmt.Errorf("postgres schema failed: %w", err)
		}
		archive := sink.NewPostgresSink(pool, sink.DefaultPostgresConfig(), logger)
		supervisor.Add(archive)
		orchestrator.RegisterSinks(archive)
	}

	// 4. Control API, overlay and health
	operators := repositories.NewOperatorRepository(db)
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(operators, tokens, auth.DefaultParams)
	if err := bootstrapAdmin(authService, config, logger); err != nil {
		return exitConfig, err
	}
	streamService := services.NewStreamService(services.StreamDeps{
		Ingester:    orchestrator,
		Stats:       orchestrator.Analytics(),
		Music:       orchestrator.Music(),
		TTS:         orchestrator.TTS(),
		Goals:       orchestrator.Goals(),
		Viewers:     orchestrator.Directory(),
		Completions: orchestrator.Completions(),
		Bus:         orchestrator.Bus(),
		Messages:    storage.Messages,
		Search:      chatIndex,
	})
	router := server.NewRouter(server.Deps{
		Auth:         authService,
		Stream:       streamService,
		Tokens:       tokens,
		Overlay:      orchestrator.Hub().ServeWS,
		Inspector:    internal.NewInspectHandler(db, internal.DefaultMapper, orchestrator.Diagnostics),
		BackendToken: config.BackendToken,
		Log:          logger,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	health := server.NewHealthServer(logger)

	// 5. Run everything until a signal or the first failure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting orchestrator...")
		return orchestrator.Start(gctx)
	})
	g.Go(func() error { return server.Serve(gctx, httpServer, logger) })
	g.Go(func() error { return health.Serve(gctx, listener) })
	g.Go(func() error {
		select {
		case <-orchestrator.Ready():
		case <-gctx.Done():
			return nil
		}
		health.SetServing(true)
		for _, src := range sources {
			g.Go(func() error {
				if err := src.Run(gctx, orchestrator); err != nil && gctx.Err() == nil {
					return fmt.Errorf("chat source stopped: %w", err)
				}
				return nil
			})
		}
		return nil
	})

	err = g.Wait()
	orchestrator.Stop()
	if err != nil {
		return exitRuntime, err
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func runtimeConfig(config internal.Config, charReplacement rune, catalog domain.Catalog) runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.Channel = config.Channel
	cfg.Admins = config.AdminList()
	cfg.Lanes = config.NumberOfLanes
	cfg.BufferSize = config.BufferSize
	cfg.LaneBufferSize = config.LaneBufferSize
	cfg.CharReplacement = charReplacement
	cfg.WatchGap = config.WatchGap
	cfg.SinkTimeout = config.SinkTimeout
	cfg.RestartInterval = config.RestartInterval
	cfg.MetricInterval = config.MetricInterval
	cfg.LatencyThreshold = config.LatencyThreshold
	cfg.LowCapacityThreshold = config.LowCapacityThreshold
	cfg.SnapshotInterval = config.SnapshotInterval
	cfg.SweepInterval = config.SweepInterval
	cfg.LedgerBatchSize = config.LedgerBatchSize
	cfg.LedgerRetain = config.LedgerRetain
	cfg.BufferTimeout = config.BufferTimeout
	cfg.BackendTimeout = config.BackendTimeout
	cfg.PlaybackPoll = config.PlaybackPoll
	cfg.RecentEvents = config.RecentEvents
	cfg.Hub.OutboxSize = config.OutboxSize
	cfg.Hub.PingInterval = config.PingInterval
	cfg.Hub.MaxMissedPongs = config.MaxMissedPongs
	cfg.Analytics.Window = config.AnalyticsWindow
	cfg.Catalog = catalog
	return cfg
}

// prepareSources connects the optional chat sources. The Twitch source also answers in chat.
func prepareSources(config internal.Config, orchestrator *runtime.Orchestrator, logger *slog.Logger) ([]contract.Source, func(), error) {
	var sources []contract.Source
	cleanup := func() {}

	if config.TwitchUsername != "" || config.TwitchToken != "" {
		twitch := ingestion.NewTwitchSource(ingestion.TwitchConfig{
			Username:   config.TwitchUsername,
			OAuthToken: config.TwitchToken,
			Channel:    config.Channel,
		}, logger)
		if config.TwitchToken != "" {
			orchestrator.WithReplier(twitch)
		}
		sources = append(sources, twitch)
	}

	if config.RedisAddress != "" {
		redis, err := ingestion.NewRedisSource(ingestion.RedisConfig{
			Address:      config.RedisAddress,
			Password:     config.RedisPassword,
			DB:           config.RedisDB,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			Channel:      config.RedisChannel,
		}, logger)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			logger.Info("Closing Redis...")
			_ = redis.Close()
		}
		sources = append(sources, redis)
	}

	if len(sources) == 0 {
		logger.Info("No chat source configured, events are only accepted on the control API")
	}
	return sources, cleanup, nil
}

// bootstrapAdmin creates the first admin operator when credentials are provided.
func bootstrapAdmin(authService services.IAuthService, config internal.Config, logger *slog.Logger) error {
	if config.AdminEmail == "" {
		return nil
	}
	_, err := authService.Register(config.AdminEmail, config.AdminPassword, auth.RoleAdmin, auth.RoleOperator)
	switch {
	case err == nil:
		logger.Info("Admin operator created", "email", config.AdminEmail)
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		logger.Debug("Admin operator already exists", "email", config.AdminEmail)
	default:
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}
	return nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
