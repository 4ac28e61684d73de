// Package app assembles the scheduling engine and its infrastructure from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/api"
	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
	"github.com/hackgods/doctor-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/doctor-appointment-scheduling/internal/redis"
)

const metricsNamespace = "scheduler"

type App struct {
	Config   config.Config
	Service  *appointment.Service
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Pool     *pgxpool.Pool                 // nil with the memory store
	Redis    *redis.Client                 // nil with the local locker
	Memory   *appointment.MemoryRepository // nil with the postgres store

	log     zerolog.Logger
	closers []func()
}

// New connects the configured store, locker and SMS gateway and builds the service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		log:      logger,
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry, metricsNamespace)

	var (
		repo  appointment.Repository
		users appointment.UserDirectory
	)

	switch cfg.Store {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions())
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		logger.Info().Msg("connected to Postgres")

		pg := appointment.NewPgRepository(pool)
		repo, users = pg, pg
	default:
		mem := appointment.NewMemoryRepository()
		a.Memory = mem
		repo, users = mem, mem
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	}

	if cfg.UserCacheTTL > 0 {
		users = appointment.NewCachedUserDirectory(users, cfg.UserCacheTTL)
	}

	var locker lock.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		})
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("connected to Redis")
	default:
		locker = lock.NewLocalLocker()
	}

	a.Service = appointment.NewService(repo, users, appointment.Options{
		Catalog:  appointment.SlotCatalog(cfg.SlotCatalog),
		Locker:   locker,
		Notifier: notify.NewSMSNotifier(NewGateway(cfg, logger), a.Metrics, logger),
		Metrics:  a.Metrics,
		Logger:   logger,
	})

	return a, nil
}

// NewGateway picks Twilio when credentials are configured and log-only delivery otherwise.
func NewGateway(cfg config.Config, logger zerolog.Logger) notify.Gateway {
	var gw notify.Gateway
	if cfg.SMSEnabled() {
		gw = notify.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		logger.Warn().Msg("twilio credentials missing, sms runs in simulation mode")
		gw = notify.NewLogGateway(logger)
	}
	if cfg.SMSRatePerSec > 0 {
		gw = notify.NewRateLimitedGateway(gw, cfg.SMSRatePerSec, cfg.SMSBurst)
	}
	return gw
}

// Dependencies lists the readiness checks for whatever infrastructure is connected.
func (a *App) Dependencies() []api.Dependency {
	var deps []api.Dependency
	if a.Pool != nil {
		deps = append(deps, api.Dependency{Name: "postgres", Critical: true, Ping: a.Pool.Ping})
	}
	if a.Redis != nil {
		deps = append(deps, api.Dependency{Name: "redis", Ping: redisclient.Ping(a.Redis)})
	}
	return deps
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
