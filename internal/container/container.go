package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exprview/adapters/blob"
	"exprview/adapters/excel"
	"exprview/adapters/postgres"
	"exprview/adapters/sqlite"
	"exprview/app"
	"exprview/internal"
	"exprview/internal/config"
	"exprview/internal/engine"
	"exprview/internal/session"
	"exprview/internal/testkit"
	"exprview/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Dataset   ports.Dataset
	Snapshots ports.SnapshotRepository
	Downloads ports.DownloadStore
	// LocalDownloads is set when downloads are served from this process
	LocalDownloads *blob.LocalStore
	Exporter       ports.MatrixExporter

	// Application
	Sessions *session.Manager
	Service  *app.MatrixService

	closers []func() error
	logger  *internal.Logger
	wg      sync.WaitGroup
}

// New creates a container and initializes every component the config selects
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{Config: cfg, logger: internal.DefaultLogger.WithComponent("container")}

	if err := c.initDatabase(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initDataset(); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize dataset: %w", err)
	}
	if err := c.initSnapshots(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	if err := c.initDownloads(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize download store: %w", err)
	}
	c.initService()

	c.logger.Info("Container initialized (data=%s, snapshots=%s, downloads=%s)",
		cfg.Data.Driver, cfg.Snapshots.Driver, cfg.Downloads.Driver)
	return c, nil
}

// initDatabase connects only when a component needs PostgreSQL
func (c *Container) initDatabase(ctx context.Context) error {
	if c.Config.Data.Driver != config.DataPostgres && c.Config.Snapshots.Driver != config.SnapshotsPostgres {
		return nil
	}
	db, err := postgres.Open(ctx, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.DB = db
	c.closers = append(c.closers, db.Close)
	return nil
}

func (c *Container) initDataset() error {
	switch c.Config.Data.Driver {
	case config.DataExcel:
		ds, err := excel.LoadWorkbook(excel.DefaultWorkbookConfig(c.Config.Data.WorkbookPath))
		if err != nil {
			return err
		}
		c.Dataset = ds
	case config.DataPostgres:
		c.Dataset = postgres.NewExpressionRepository(c.DB)
	default:
		gen := testkit.DefaultExpressionConfig()
		gen.Seed = c.Config.Data.Seed
		c.Dataset = testkit.NewExpressionDataGenerator(gen).Generate()
		c.logger.Warn("Serving a generated demo dataset (seed %d)", gen.Seed)
	}
	return nil
}

func (c *Container) initSnapshots(ctx context.Context) error {
	switch c.Config.Snapshots.Driver {
	case config.SnapshotsPostgres:
		c.Snapshots = postgres.NewSnapshotRepository(c.DB)
	case config.SnapshotsSQLite:
		store, err := sqlite.NewSnapshotStore(ctx, c.Config.Snapshots.SQLitePath)
		if err != nil {
			return err
		}
		c.Snapshots = store
		c.closers = append(c.closers, store.Close)
	}
	return nil
}

func (c *Container) initDownloads(ctx context.Context) error {
	d := c.Config.Downloads
	switch d.Driver {
	case config.DownloadsS3:
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:    d.S3Region,
			Bucket:    d.S3Bucket,
			Prefix:    d.S3Prefix,
			Endpoint:  d.S3Endpoint,
			PathStyle: d.S3PathStyle,
			Expiry:    d.TTL,
		})
		if err != nil {
			return err
		}
		c.Downloads = store
	default:
		store, err := blob.NewLocalStore(d.Directory, d.URLPrefix, d.TTL)
		if err != nil {
			return err
		}
		c.Downloads = store
		c.LocalDownloads = store
	}
	c.Exporter = excel.NewExporter()
	return nil
}

func (c *Container) initService() {
	cfg := c.Config
	opts := engine.BuilderOptions{
		FetchParallelism: cfg.Engine.FetchParallelism,
		FetchChunkSize:   cfg.Engine.FetchChunkSize,
	}
	newEngine := func() *engine.Engine {
		return engine.New(engine.NewBuilder(c.Dataset, c.Dataset, cfg.Schema, opts), nil)
	}
	c.Sessions = session.NewManager(newEngine, session.Options{
		MaxConcurrentBuilds: cfg.Engine.MaxConcurrentBuilds,
		Schema:              cfg.Schema,
		Snapshots:           c.Snapshots,
	})
	c.Service = app.NewMatrixService(c.Sessions, c.Dataset, c.Exporter, c.Downloads)
}

// StartJanitor periodically closes idle sessions and removes expired local
// downloads until ctx is cancelled
func (c *Container) StartJanitor(ctx context.Context, interval time.Duration) {
	idle := c.Config.Server.SessionIdleTimeout
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep(ctx, idle)
			}
		}
	}()
}

func (c *Container) sweep(ctx context.Context, idle time.Duration) {
	if idle > 0 {
		if n := c.Service.ExpireIdle(idle); n > 0 {
			c.logger.Info("Closed %d idle sessions", n)
		}
	}
	if c.LocalDownloads != nil && c.Config.Downloads.TTL > 0 {
		n, err := c.LocalDownloads.CleanupExpired(ctx, c.Config.Downloads.TTL)
		if err != nil {
			c.logger.Warn("Download cleanup failed: %v", err)
		} else if n > 0 {
			c.logger.Info("Removed %d expired downloads", n)
		}
	}
}

// Shutdown waits for background work and releases resources. The janitor
// stops when the context given to StartJanitor is cancelled.
func (c *Container) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("Shutdown deadline reached before background work stopped")
	}

	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
