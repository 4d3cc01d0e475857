// Package bootstrap wires a pricing engine from configuration. Redis, NATS
// and Neo4j are optional and only dialled when configured.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/WessleyAI/wessley-parts/engine/audit"
	"github.com/WessleyAI/wessley-parts/engine/catalog"
	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/engine/pricing"
	"github.com/WessleyAI/wessley-parts/engine/refdata"
	"github.com/WessleyAI/wessley-parts/engine/resolver"
	"github.com/WessleyAI/wessley-parts/engine/scraper"
	"github.com/WessleyAI/wessley-parts/engine/vehicle"
	"github.com/WessleyAI/wessley-parts/pkg/config"
	"github.com/WessleyAI/wessley-parts/pkg/metrics"
	"github.com/WessleyAI/wessley-parts/pkg/resilience"
)

// App is a wired engine and the connections it owns.
type App struct {
	Engine  *pricing.Engine
	Metrics *metrics.Metrics
	Data    *refdata.Data

	guards  map[string]*resilience.Guard
	closers []func(context.Context) error
}

type conns struct {
	rdb    *redis.Client
	nc     *nats.Conn
	driver neo4j.DriverWithContext
}

// New loads reference data, dials configured backends concurrently and
// builds the engine.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := refdata.Load(refdata.Paths{
		Taxonomy:  cfg.TaxonomyPath,
		Lookup:    cfg.LookupPath,
		Catalog:   cfg.StaticCatalogPath,
		Reference: cfg.ReferencePath,
	})
	if err != nil {
		return nil, fmt.Errorf("reference data: %w", err)
	}

	c, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Data: data, Metrics: metrics.New(), guards: map[string]*resilience.Guard{}}
	if c.rdb != nil {
		app.closers = append(app.closers, func(context.Context) error { return c.rdb.Close() })
	}
	if c.nc != nil {
		app.closers = append(app.closers, func(context.Context) error { return c.nc.Drain() })
	}
	if c.driver != nil {
		app.closers = append(app.closers, c.driver.Close)
	}

	var cache pricing.Cache = catalog.NewFileCache(cfg.ScrapeCachePath(), logger)
	if c.rdb != nil {
		cache = catalog.NewRedisCache(c.rdb, logger)
	}

	catOpts := []catalog.Option{catalog.WithBase(data.Catalog), catalog.WithLogger(logger)}
	if c.driver != nil {
		mirror := catalog.NewGraphMirror(c.driver)
		if err := mirror.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j schema setup failed", "err", err)
		}
		catOpts = append(catOpts, catalog.WithMirror(mirror))
	}
	cat := catalog.NewCatalog(cfg.CatalogPath(), catOpts...)

	primary, err := scraper.NewPrimary(cfg.PrimaryBaseURL, app.fetcher(cfg, domain.SourcePrimary, cfg.FetchAttempts, logger), data, logger)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	secondary, err := scraper.NewSecondary(cfg.SecondaryBaseURL, app.fetcher(cfg, domain.SourceSecondary, 1, logger))
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	sinks := audit.Multi{audit.NewCSVSink(cfg.AuditCSV)}
	if c.nc != nil {
		sinks = append(sinks, audit.NewNATSSink(c.nc, cfg.AuditSubject))
	}

	app.Engine = pricing.New(pricing.Deps{
		Matcher:     vehicle.NewMatcher(data),
		Resolver:    resolver.New(data, cat, primary, logger),
		Primary:     primary,
		Secondary:   secondary,
		Catalog:     cat,
		Cache:       cache,
		Audit:       sinks,
		Metrics:     app.Metrics,
		Logger:      logger,
		Speculative: cfg.SpeculativeCandidates,
	})
	logger.Info("engine ready",
		"redis", c.rdb != nil,
		"nats", c.nc != nil,
		"neo4j", c.driver != nil,
		"speculative", cfg.SpeculativeCandidates,
	)
	return app, nil
}

func (a *App) fetcher(cfg config.Config, source string, attempts int, logger *slog.Logger) *scraper.Fetcher {
	guard := resilience.NewGuard(resilience.GuardOpts{
		Name:   source,
		Rate:   cfg.FetchRPS,
		Logger: logger,
	})
	a.guards[source] = guard
	return scraper.NewFetcher(scraper.FetcherOpts{
		Source:   source,
		Timeout:  cfg.FetchTimeout,
		Attempts: attempts,
		Guard:    guard,
		Metrics:  a.Metrics,
		Logger:   logger.With("source", source),
	})
}

// Breakers reports the circuit breaker state of each marketplace.
func (a *App) Breakers() map[string]string {
	out := make(map[string]string, len(a.guards))
	for source, g := range a.guards {
		out[source] = g.State()
	}
	return out
}

// dial connects every configured backend concurrently. On failure the ones
// that did connect are closed.
func dial(ctx context.Context, cfg config.Config) (conns, error) {
	var c conns
	g, gctx := errgroup.WithContext(ctx)
	if cfg.RedisAddr != "" {
		g.Go(func() error {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := rdb.Ping(gctx).Err(); err != nil {
				rdb.Close()
				return fmt.Errorf("redis ping: %w", err)
			}
			c.rdb = rdb
			return nil
		})
	}
	if cfg.NATSURL != "" {
		g.Go(func() error {
			nc, err := nats.Connect(cfg.NATSURL, nats.Name("wessley-parts"))
			if err != nil {
				return fmt.Errorf("nats connect: %w", err)
			}
			c.nc = nc
			return nil
		})
	}
	if cfg.Neo4jURL != "" {
		g.Go(func() error {
			driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
			if err != nil {
				return fmt.Errorf("neo4j driver: %w", err)
			}
			if err := driver.VerifyConnectivity(gctx); err != nil {
				driver.Close(context.Background())
				return fmt.Errorf("neo4j connect: %w", err)
			}
			c.driver = driver
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if c.rdb != nil {
			c.rdb.Close()
		}
		if c.nc != nil {
			c.nc.Close()
		}
		if c.driver != nil {
			c.driver.Close(context.Background())
		}
		return conns{}, err
	}
	return c, nil
}

// Close releases every connection the App owns.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
