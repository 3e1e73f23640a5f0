// Command goguard-server runs the access control gate in front of the
// workforce application: login, forced password reset, tenant override and
// the administration API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/mail"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/query"
	"github.com/MrEthical07/goGuard/query/memstore"
	"github.com/MrEthical07/goGuard/query/sqlstore"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("GOGUARD_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Environment, cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// backends are the stores and transports selected by the config.
type backends struct {
	accounts credstore.Store
	auditLog query.Executor
	limiter  *rate.Memory
	redis    redis.UniversalClient
	mailer   mail.Mailer
	closers  []func() error
}

func (b *backends) close(logger *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}
}

func openBackends(ctx context.Context, cfg Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnLifetime)
		if err := db.PingContext(ctx); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		store := credstore.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			b.close(logger)
			return nil, err
		}
		if _, err := db.ExecContext(ctx, audit.Schema); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
		b.accounts = store
		b.auditLog = sqlstore.New(db)
		logger.Info("using postgres backends")
	} else {
		b.accounts = credstore.NewMemory()
		b.auditLog = memstore.New()
		logger.Warn("no postgres dsn configured, accounts are kept in memory")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.redis = client
	} else {
		b.limiter = rate.NewMemory(rate.Config{
			MaxAttempts: cfg.Engine.RateLimit.MaxAttempts,
			Window:      cfg.Engine.RateLimit.Window,
		}, nil)
	}

	if cfg.AMQP.URL != "" {
		conn, ch, err := mail.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.closers = append(b.closers, conn.Close)
		b.mailer = mail.NewAMQPMailer(ch, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
	}

	return b, nil
}

func buildEngine(cfg Config, logger *zap.Logger, b *backends) (*goGuard.Engine, error) {
	builder := goGuard.New().
		WithConfig(cfg.Engine).
		WithLogger(logger).
		WithAccountStore(b.accounts).
		WithAuditSink(goGuard.NewZapSink(logger)).
		WithAuditLog(b.auditLog)
	if b.redis != nil {
		builder = builder.WithRedis(b.redis)
	}
	if b.limiter != nil {
		builder = builder.WithRateLimiter(b.limiter)
	}
	if b.mailer != nil {
		builder = builder.WithMailer(b.mailer)
	}
	return builder.Build()
}

// seedOperator creates the configured platform operator once.
func seedOperator(ctx context.Context, engine *goGuard.Engine, seed SeedConfig, logger *zap.Logger) (bool, error) {
	if seed.Email == "" {
		return false, nil
	}
	a, created, err := engine.SeedOperator(ctx, seed.Email, seed.Password)
	if err != nil {
		return false, err
	}
	if created {
		logger.Info("platform operator seeded", zap.String("account_id", a.ID))
	}
	return true, nil
}

// startSweeper drops expired login windows from the in-memory limiter on
// schedule. It returns nil when the limiter lives in Redis.
func startSweeper(schedule string, limiter *rate.Memory, logger *zap.Logger) (*cron.Cron, error) {
	if limiter == nil || schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if removed := limiter.Sweep(); removed > 0 {
			logger.Debug("login windows swept", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule limiter sweep: %w", err)
	}
	c.Start()
	return c, nil
}

func run(cfg Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	engine, err := buildEngine(cfg, logger, b)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer engine.Close()

	var seeded atomic.Bool
	ok, err := seedOperator(ctx, engine, cfg.Seed, logger)
	if err != nil {
		return fmt.Errorf("failed to seed operator: %w", err)
	}
	seeded.Store(ok)

	sweeper, err := startSweeper(cfg.Server.SweepSchedule, b.limiter, logger)
	if err != nil {
		return err
	}
	if sweeper != nil {
		defer func() { <-sweeper.Stop().Done() }()
	}

	srv := &server{
		engine:   engine,
		logger:   logger.Named("http"),
		cfg:      cfg.Server,
		metrics:  promexport.NewExporter(engine).Handler(),
		auditLog: b.auditLog,
		seeded:   seeded.Load,
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
