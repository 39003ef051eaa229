package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"apteka/parser/internal/client"
	"apteka/parser/internal/config"
	"apteka/parser/internal/domain"
	"apteka/parser/internal/normalize"
	"apteka/parser/internal/proxy"
	"apteka/parser/internal/queue"
	"apteka/parser/internal/repository"
	"apteka/parser/internal/service"
	"apteka/parser/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Client       client.AptekaClient
	Sink         repository.ProductSink
	Queue        queue.Queue
	StateManager state.StateManager

	Service *service.Service

	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config:       cfg,
		StateManager: state.NewNopStateManager(),
	}

	// Initialize ProxySupplier
	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Apteka.Proxies, cfg.Apteka.BaseURL)

	sink, err := newSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	container.Sink = sink

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		container.redis = rdb

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		container.StateManager = state.NewRedisStateManager(rdb)

		if cfg.Apteka.Mode == config.ModeQueue {
			redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis.ConsumerGroup)
			if err != nil {
				container.Close()
				return nil, err
			}
			container.Queue = redisQueue
		}
	}

	container.Client = client.NewAptekaClient(cfg.Apteka, proxySupplier)

	normalizer := normalize.NewNormalizer(normalize.Options{
		BaseURL:         cfg.Apteka.BaseURL,
		HeaderKeywords:  cfg.Normalize.HeaderKeywords,
		BreadcrumbRoots: cfg.Normalize.BreadcrumbRoots,
		SaleTagPrefix:   cfg.Normalize.SaleTagPrefix,
	})

	slugs := make([]domain.CatalogSlug, 0, len(cfg.Apteka.Slugs))
	for _, slug := range cfg.Apteka.Slugs {
		slugs = append(slugs, domain.CatalogSlug(slug))
	}

	container.Service = service.NewService(
		container.Client,
		normalizer,
		container.Sink,
		container.Queue,
		container.StateManager,
		service.Settings{
			Slugs:       slugs,
			PageSize:    cfg.Apteka.PageSize,
			MaxWorkers:  cfg.Apteka.MaxWorkers,
			GroupName:   cfg.Redis.ConsumerGroup,
			MinIdleTime: time.Duration(cfg.Redis.MinIdleTime) * time.Second,
		},
	)

	return container, nil
}

func newSink(ctx context.Context, cfg *config.Config) (repository.ProductSink, error) {
	switch cfg.Sink.Type {
	case config.SinkPostgres:
		db, err := pgxpool.New(ctx,
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("✅ Connected to Postgres successfully")
		return repository.NewProductRepository(db), nil

	case config.SinkJSONL:
		sink, err := repository.NewJSONLSink(cfg.Sink.Path)
		if err != nil {
			return nil, err
		}
		log.Infof("✅ Writing records to %s", cfg.Sink.Path)
		return sink, nil

	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}

// Run executes one full crawl in the configured mode
func (c *Container) Run(ctx context.Context) error {
	defer c.Service.LogSummary(context.WithoutCancel(ctx))

	if c.Config.Apteka.Mode != config.ModeQueue {
		return c.Service.Crawl(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	walkDone := make(chan struct{})

	// Run ParseAll to enqueue tasks
	g.Go(func() error {
		defer close(walkDone)
		return c.Service.ParseAll(ctx)
	})

	// Run workers to process tasks
	g.Go(func() error {
		return c.Service.RunWorkers(ctx, walkDone)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var closeErr error
	if c.Sink != nil {
		if err := c.Sink.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close sink: %w", err)
		}
	}
	if c.redis != nil {
		c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return closeErr
}
