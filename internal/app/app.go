package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskapi/internal/cache"
	"taskapi/internal/config"
	"taskapi/internal/middleware"
	"taskapi/internal/repo"
	"taskapi/internal/service"
	"taskapi/migrations"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	pg     *pgxpool.Pool
	gdb    *gorm.DB
	redis  *redis.Client
	router *gin.Engine
}

// New opens the configured store (and Redis, when set) and builds the router.
// ctx bounds the startup connects and pings only.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var pageCache service.PageCache
	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			_ = a.closeStore()
			return nil, err
		}
		a.redis = rdb
		pageCache = cache.NewTaskCache(rdb, cfg.Redis.TTL.Duration())
		log.Info("page cache enabled",
			zap.String("redis_addr", rdb.Options().Addr),
			zap.Duration("ttl", cfg.Redis.TTL.Duration()),
		)
	}

	svc := service.NewTaskService(store, pageCache, log)
	a.router = NewRouter(cfg, log, svc)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Close releases Redis and the store. The HTTP server must be shut down first.
func (a *App) Close(_ context.Context) error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
		a.redis = nil
	}
	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		a.log.Error("close failed", zap.Error(err))
		return err
	}
	a.log.Info("store and cache closed")
	return nil
}

func (a *App) openStore(ctx context.Context) (repo.TaskRepo, error) {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.DriverSQLite:
		db, err := repo.OpenSQLite(sc.SQLitePath, nil)
		if err != nil {
			return nil, err
		}
		a.gdb = db
		r := repo.NewGormTaskRepo(db)
		if err := r.AutoMigrate(); err != nil {
			_ = a.closeStore()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		a.log.Info("store ready", zap.String("driver", config.DriverSQLite), zap.String("path", sc.SQLitePath))
		return r, nil
	case config.DriverPostgres:
		pool, err := newPostgres(ctx, sc)
		if err != nil {
			return nil, err
		}
		a.pg = pool
		if err := migrations.Up(sc.PGDSN); err != nil {
			_ = a.closeStore()
			return nil, err
		}
		a.log.Info("store ready",
			zap.String("driver", config.DriverPostgres),
			zap.Int("max_conns", sc.PGMaxConns),
			zap.Int("min_conns", sc.PGMinConns),
		)
		return repo.NewPGTaskRepo(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
}

func (a *App) closeStore() error {
	if a.pg != nil {
		a.pg.Close()
		a.pg = nil
	}
	if a.gdb != nil {
		gdb := a.gdb
		a.gdb = nil
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("sqlite handle: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("sqlite close: %w", err)
		}
	}
	return nil
}

// newPostgres opens the task pool sized from config and pings it within
// PG_CONNECT_TIMEOUT.
func newPostgres(ctx context.Context, sc config.StoreConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(sc.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	pcfg.MaxConns = int32(sc.PGMaxConns)
	pcfg.MinConns = int32(sc.PGMinConns)
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, sc.PGConnectTimeout.Duration())
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

func newRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	opts, err := rc.Options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// NewRouter builds the HTTP engine around an already wired TaskService.
func NewRouter(cfg config.Config, log *zap.Logger, svc *service.TaskService) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.Recovery(log),
	)

	r.Use(cors.New(corsConfig(cfg.HTTP.AllowOrigins)))

	Setup(r, cfg, svc, log)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowOrigins = append(c.AllowOrigins, o)
		}
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	}
	return c
}
