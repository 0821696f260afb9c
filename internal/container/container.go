package container

import (
	"context"
	"fmt"
	"time"

	"storefront/menu/internal/cache"
	"storefront/menu/internal/client"
	"storefront/menu/internal/config"
	"storefront/menu/internal/endpoint"
	"storefront/menu/internal/menu"
	"storefront/menu/internal/queue"
	"storefront/menu/internal/repository"
	"storefront/menu/internal/search"
	"storefront/menu/internal/server"
	"storefront/menu/internal/service"
	"storefront/menu/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Container holds all initialized components
type Container struct {
	Config    *config.Config
	Client    client.StorefrontClient
	Service   *service.Service
	Suggester *search.Suggester
	Server    *server.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a container with every dependency of the long-running service
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config: cfg,
	}

	pool := endpoint.NewPool(ctx, cfg.Backend.Endpoints, cfg.Backend.HealthPath)
	c.Client = client.NewStorefrontClient(cfg.Backend, pool)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.redis = rdb
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis.ConsumerGroup)
	if err != nil {
		c.Close()
		return nil, err
	}

	var remote cache.Store
	if cfg.Cache.UseRedis {
		remote = cache.NewRedisStore(rdb)
	}

	repo := repository.NewNoopRepository()
	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.db = db
		if err := repository.Migrate(ctx, db); err != nil {
			c.Close()
			return nil, err
		}
		repo = repository.NewSnapshotRepository(db)
		log.Info("✅ Snapshot repository ready")
	}

	c.Service = service.NewService(c.Client, cache.New(cfg.Cache.Size, cfg.Cache.TTLDuration(), remote), service.Options{
		Queue:        redisQueue,
		StateManager: state.NewRedisManager(rdb),
		Repository:   repo,
		Layout:       layoutOf(cfg),
		MinIdleTime:  time.Duration(cfg.Redis.MinIdleTime) * time.Second,
	})

	if err := c.initHTTP(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// NewStandalone creates a container without Redis or Postgres, for one-shot CLI use
func NewStandalone(cfg *config.Config) *Container {
	c := &Container{Config: cfg}
	c.Client = client.NewStorefrontClient(cfg.Backend, endpoint.NewStaticPool(cfg.Backend.Endpoints))
	c.Service = service.NewService(c.Client, cache.New(cfg.Cache.Size, cfg.Cache.TTLDuration(), nil), service.Options{
		Layout: layoutOf(cfg),
	})
	return c
}

func (c *Container) initHTTP() error {
	suggester, err := search.NewSuggester(c.Client, search.Options{
		Debounce:       c.Config.Search.Debounce(),
		MinQueryLength: c.Config.Search.MinQueryLength,
		MaxSessions:    c.Config.Search.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize suggester: %w", err)
	}
	c.Suggester = suggester

	c.Server = server.New(c.Service, suggester, time.Duration(c.Config.Server.RequestTimeout)*time.Second)
	return nil
}

func layoutOf(cfg *config.Config) menu.Layout {
	return menu.Layout{ChunkSize: cfg.Menu.ChunkSize, MaxCols: cfg.Menu.MaxCols}
}

// Run serves the API and runs the refresh workers until ctx is cancelled
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// Warm the shared cache so the first page view does not pay for the fetch
	g.Go(func() error {
		if err := c.Service.Refresh(ctx); err != nil {
			log.Warnf("⚠️ Initial menu load failed: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		return c.Server.ListenAndServe(ctx, c.Config.Server.Addr())
	})

	g.Go(func() error {
		return c.Service.RunWorkers(ctx, c.Config.Menu.Workers)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
}
