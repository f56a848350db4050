package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/walletlink/adapters/events"
	"github.com/layer-3/walletlink/adapters/lock"
	"github.com/layer-3/walletlink/adapters/scheme"
	"github.com/layer-3/walletlink/adapters/store"
	"github.com/layer-3/walletlink/adapters/tokenizer"
	"github.com/layer-3/walletlink/config"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
	transport "github.com/layer-3/walletlink/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("walletlink stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(env string) *slog.Logger {
	if env == config.EnvDevelopment {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sch, err := scheme.New(cfg.SignatureScheme)
	if err != nil {
		return err
	}

	uow, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, publisher, closeBus, err := openCoordination(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	tok, err := openTokenizer(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	svcCfg := service.DefaultConfig()
	svcCfg.Domain = cfg.Domain
	svcCfg.Banner = cfg.ProtocolBanner
	svcCfg.MaxAttemptsPerWindow = cfg.MaxAttemptsPerHour
	svcCfg.MaxWalletReuse = cfg.MaxWalletReuse

	walletService := service.NewWalletService(uow, sch, locker, svcCfg,
		service.WithEventPublisher(events.NewWatermillPublisher(publisher)),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.SetupRouter(walletService, tok, reg, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "scheme", sch.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openStore selects Postgres when a database URL is configured and the
// in-memory store otherwise
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.UnitOfWork, func(), error) {
	if cfg.DatabaseURL == "" {
		mem := store.NewMemoryStore()
		for _, id := range cfg.DevAccounts {
			mem.PutAccount(core.Account{ID: id})
		}
		logger.Warn("using in-memory store", "seeded_accounts", len(cfg.DevAccounts))
		return mem, func() {}, nil
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := store.RunMigrations(ctx, db); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store.NewGormStore(db), closeFn, nil
}

// openCoordination builds the issuance locker and the event publisher. Both
// use Redis when it is configured so that every instance shares them.
func openCoordination(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Locker, message.Publisher, func(), error) {
	wmLogger := watermill.NewSlogLogger(logger.With("module", "events"))

	if cfg.RedisURL == "" {
		logger.Warn("redis not configured, using in-process locker and event bus")
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return lock.NewMemoryLocker(), pubSub, func() { _ = pubSub.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach Redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	closeFn := func() {
		_ = publisher.Close()
		_ = redisClient.Close()
	}
	return lock.NewRedisLocker(redisClient, 10*time.Second), publisher, closeFn, nil
}

// openTokenizer loads the access token keys. Without key files a throwaway
// key is generated, which only makes sense in development.
func openTokenizer(cfg *config.Config, logger *slog.Logger) (ports.Tokenizer, error) {
	switch {
	case cfg.JWTPrivateKeyFile != "":
		key, err := tokenizer.LoadPrivateKey(cfg.JWTPrivateKeyFile)
		if err != nil {
			return nil, err
		}
		return tokenizer.NewJWTTokenizer(key), nil
	case cfg.JWTPublicKeyFile != "":
		key, err := tokenizer.LoadPublicKey(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, err
		}
		return tokenizer.NewVerifyingTokenizer(key), nil
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	tok := tokenizer.NewJWTTokenizer(privateKey)
	logger.Warn("no JWT key configured, using an ephemeral signing key")

	for _, id := range cfg.DevAccounts {
		token, err := tok.CallerToAccessToken(core.Caller{UserID: id, Role: core.RoleAdmin}, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		logger.Debug("development access token", "user_id", id, "token", token)
	}
	return tok, nil
}
