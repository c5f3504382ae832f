package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"nutrilab/internal/config"
	appdb "nutrilab/internal/db"
	"nutrilab/internal/db/mock"
	applog "nutrilab/internal/log"
	"nutrilab/internal/openfoodfacts"
	"nutrilab/internal/server"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadConfigFunc       = config.Load
	setLogLevelFunc      = applog.SetLevel
	setLogFormatFunc     = applog.SetFormat
	newMockDatabaseFunc  = mock.New
	configureDatabase    = appdb.Configure
	newProductSourceFunc = newProductSource
	newServerFunc        = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		return ch, func() { signal.Stop(ch) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}

	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}
	if err := setLogFormatFunc(cfg.Logging.Format); err != nil {
		applog.Error(ctx, "invalid log format", "format", cfg.Logging.Format, "error", err)
		return 1
	}

	var database *gorm.DB
	if cfg.Database.UseMock {
		applog.Info(ctx, "using in-memory mock database")
		database, err = newMockDatabaseFunc(ctx)
	} else if cfg.Database.URL != "" {
		database, err = configureDatabase(cfg.Database)
	} else {
		applog.Warn(ctx, "no database configured, product storage disabled")
	}
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	source, closeSource, err := newProductSourceFunc(ctx, cfg)
	if err != nil {
		applog.Error(ctx, "failed to configure product lookup", "error", err)
		return 1
	}
	defer closeSource()

	srv, err := newServerFunc(server.Config{
		Addr: cfg.Server.Addr,
		Session: server.SessionConfig{
			Lifetime:     cfg.Session.Lifetime,
			CookieName:   cfg.Session.CookieName,
			CookieDomain: cfg.Session.CookieDomain,
			CookieSecure: cfg.Session.CookieSecure,
		},
		Database:      database,
		ProductSource: source,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	shutdown, unsubscribe := subscribeShutdownSig()
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
		return 0
	case sig := <-shutdown:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
	}

	if err := srv.Stop(); err != nil {
		applog.Error(ctx, "graceful shutdown failed", "error", err)
		return 1
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Error(ctx, "server encountered an error", "error", err)
		return 1
	}
	return 0
}

// newProductSource builds the Open Food Facts client, fronted by the Redis
// cache when REDIS_URL is set.
func newProductSource(ctx context.Context, cfg config.Config) (openfoodfacts.Fetcher, func(), error) {
	client, err := openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:       cfg.OpenFoodFacts.BaseURL,
		APIVersion:    cfg.OpenFoodFacts.APIVersion,
		UserAgent:     cfg.OpenFoodFacts.UserAgent,
		Timeout:       cfg.OpenFoodFacts.Timeout,
		RatePerMinute: cfg.OpenFoodFacts.RatePerMinute,
		RateBurst:     cfg.OpenFoodFacts.RateBurst,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Cache.RedisURL == "" {
		return client, func() {}, nil
	}

	redisClient, err := openfoodfacts.NewRedisClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cached := openfoodfacts.NewCachedFetcher(client, openfoodfacts.NewRedisStore(redisClient), cfg.Cache.TTL)
	return cached, func() { redisClient.Close() }, nil
}
