package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/handler"
	"account_service/internal/notify"
	"account_service/internal/ratelimit"
	"account_service/internal/service"
	"account_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the yaml config")

	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting account service", slog.String("env", cfg.Env), slog.String("address", cfg.HTTPServer.Address))

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("account service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	//INIT DB
	if err := storage.Migrate(ctx, cfg.DB.DbURL); err != nil {
		return err
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, closeNotifier := newNotifier(cfg, lgr)
	defer closeNotifier()

	limiter, closeLimiter := newLimiter(ctx, cfg, lgr)
	defer closeLimiter()

	srvc := service.NewService(
		st,
		auth.NewHasher(cfg.Password.BcryptCost, cfg.Password.MaxConcurrent),
		auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn),
		notifier,
		lgr,
	)

	h := handler.NewHandler(srvc, lgr, handler.Options{
		Env:           cfg.Env,
		SecureCookies: cfg.SecureCookies(),
		PublicURL:     cfg.PublicURL,
		Limiter:       limiter,
	})

	//INIT SERVER
	srv := handler.ServerConfig(cfg.HTTPServer, h.InitRoutes())

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newNotifier(cfg *config.Config, lgr *slog.Logger) (notify.Notifier, func()) {
	switch cfg.Notifier.Kind {
	case config.NotifierSMTP:
		return notify.NewSMTPNotifier(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From), func() {}
	case config.NotifierKafka:
		n := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return n, func() {
			if err := n.Close(); err != nil {
				lgr.Error("failed to close kafka writer", slog.Any("error", err))
			}
		}
	default:
		lgr.Warn("reset emails are only logged", slog.String("notifier", cfg.Notifier.Kind))
		return notify.NewLogNotifier(lgr), func() {}
	}
}

// newLimiter uses Redis when configured so that every instance shares one
// budget per client; otherwise each process keeps its own buckets.
func newLimiter(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (ratelimit.Limiter, func()) {
	if cfg.Redis.Addr == "" {
		l := ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go l.Run(ctx, time.Minute)
		return l, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		lgr.Warn("redis unreachable, rate limiting will fail open", slog.Any("error", err))
	}

	return ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window), func() {
		_ = rdb.Close()
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
