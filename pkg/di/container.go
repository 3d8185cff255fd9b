package di

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-service-handlers/audit"
	"github.com/goliatone/go-service-handlers/cache"
	"github.com/goliatone/go-service-handlers/config"
	"github.com/goliatone/go-service-handlers/internal/dblog"
	"github.com/goliatone/go-service-handlers/lookupcache"
	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/security"
	"github.com/goliatone/go-service-handlers/services"
	"github.com/goliatone/go-service-handlers/uow"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Container wires the shared components used by handlers: database, row
// type registry, cache, generation store, audit sinks and permission gate.
// Handlers for a row type are built with the package level factories
// NewListHandler, NewUndeleteHandler and NewCachedLister.
type Container struct {
	config *config.Config
	logger *logrus.Logger

	db     *bun.DB
	ownsDB bool

	registry      *row.Registry
	cacheService  cache.CacheService
	generations   cache.GenerationStore
	keySerializer cache.KeySerializer
	invalidator   *cache.Invalidator

	auditStore audit.Store
	capture    audit.CaptureLogger
	evaluator  security.Evaluator
	gate       *security.Gate
}

// Option customizes a Container.
type Option func(*Container)

// WithDB uses db instead of opening one from the configuration. The
// container does not close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithEvaluator replaces security.ContextEvaluator.
func WithEvaluator(e security.Evaluator) Option {
	return func(c *Container) { c.evaluator = e }
}

// WithAuditStore replaces the bun backed audit store.
func WithAuditStore(s audit.Store) Option {
	return func(c *Container) { c.auditStore = s }
}

// WithCaptureLogger replaces the bun backed change capture logger.
func WithCaptureLogger(l audit.CaptureLogger) Option {
	return func(c *Container) { c.capture = l }
}

// WithRegistry shares an existing row type registry.
func WithRegistry(r *row.Registry) Option {
	return func(c *Container) { c.registry = r }
}

// NewContainer validates cfg and builds the container.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("di: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = cfg.Log.NewLogger()
	}
	if c.registry == nil {
		c.registry = row.NewRegistry()
	}
	if c.evaluator == nil {
		c.evaluator = security.ContextEvaluator{}
	}
	if c.auditStore == nil {
		c.auditStore = audit.NewBunStore(nil)
	}
	if c.capture == nil {
		c.capture = audit.NewBunCaptureLogger(nil)
	}

	if c.db == nil {
		db, err := OpenDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}
	if cfg.Database.LogQueries {
		c.db.AddQueryHook(dblog.NewQueryHook(c.logger, dblog.WithSlowThreshold(cfg.Database.SlowQueryThreshold)))
	}

	if cfg.Cache.Enabled {
		svc, err := cache.NewCacheService(cfg.Cache.ToCache())
		if err != nil {
			c.closeOwned()
			return nil, fmt.Errorf("di: cache: %w", err)
		}
		c.cacheService = svc
	}
	c.keySerializer = cache.NewDefaultKeySerializer()
	c.generations = cache.NewGenerationStore(c.cacheService)
	c.invalidator = cache.NewInvalidator(c.generations, c.logger)
	c.gate = security.NewGate(c.evaluator, c.logger)

	c.logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
		"cache":  cfg.Cache.Enabled,
	}).Debug("container ready")

	return c, nil
}

// NewContainerWithDefaults builds a container from config.Default.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(config.Default(), opts...)
}

// OpenDB opens the configured database and wraps it with the matching bun dialect.
func OpenDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		sqldb, err = sql.Open("sqlite", cfg.DSN)
	case config.DriverPostgres:
		sqldb, err = sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("di: unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("di: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.Driver == config.DriverPostgres {
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Register adds row types to the registry. Register parent types before
// building undelete handlers so audit entries carry their type names.
func (c *Container) Register(descriptors ...row.Descriptor) error {
	for _, d := range descriptors {
		if err := c.registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// EnsureAuditSchema creates the audit tables when missing.
func (c *Container) EnsureAuditSchema(ctx context.Context) error {
	return audit.CreateSchema(ctx, c.db)
}

// RunInUnitOfWork runs fn in a transaction, committing on success.
func (c *Container) RunInUnitOfWork(ctx context.Context, fn func(ctx context.Context, u *uow.UnitOfWork) error) error {
	return uow.Run(ctx, c.db, fn, uow.WithLogger(c.logger))
}

// Close closes the database when the container opened it.
func (c *Container) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

func (c *Container) closeOwned() {
	if c.ownsDB {
		_ = c.db.Close()
	}
}

func (c *Container) Config() *config.Config             { return c.config }
func (c *Container) Logger() *logrus.Logger             { return c.logger }
func (c *Container) DB() *bun.DB                        { return c.db }
func (c *Container) Registry() *row.Registry            { return c.registry }
func (c *Container) Gate() *security.Gate               { return c.gate }
func (c *Container) Invalidator() *cache.Invalidator    { return c.invalidator }
func (c *Container) Generations() cache.GenerationStore { return c.generations }
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }
func (c *Container) AuditStore() audit.Store            { return c.auditStore }
func (c *Container) CaptureLogger() audit.CaptureLogger { return c.capture }

// CacheService returns the cache, nil when caching is disabled.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// NewListHandler builds a listing handler for typ wired to the container's
// gate, logger and page size limit. Extra options are applied last.
//
// Since Go methods cannot have type parameters, this is a package level function.
func NewListHandler[T any](c *Container, typ *row.Type[T], opts ...services.ListOption[T]) *services.ListHandler[T] {
	base := []services.ListOption[T]{
		services.WithListGate[T](c.gate),
		services.WithListLogger[T](c.logger),
		services.WithMaxTake[T](c.config.Listing.MaxTake),
	}
	return services.NewListHandler(typ, append(base, opts...)...)
}

// NewCachedLister builds a listing handler for typ behind the lookup cache.
func NewCachedLister[T any](c *Container, typ *row.Type[T], opts ...services.ListOption[T]) *lookupcache.CachedLister[T] {
	return lookupcache.New(
		NewListHandler(c, typ, opts...),
		c.cacheService,
		c.generations,
		lookupcache.WithKeySerializer[T](c.keySerializer),
		lookupcache.WithLogger[T](c.logger),
	)
}

// NewUndeleteHandler builds an undelete handler for typ with the audit
// strategy resolved from its policy.
func NewUndeleteHandler[T any](c *Container, typ *row.Type[T], opts ...services.UndeleteOption[T]) (*services.UndeleteHandler[T], error) {
	auditor, err := audit.NewCoordinator(typ, audit.Sinks{
		Store:    c.auditStore,
		Capture:  c.capture,
		Registry: c.registry,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}

	base := []services.UndeleteOption[T]{
		services.WithUndeleteGate[T](c.gate),
		services.WithAuditor(auditor),
		services.WithInvalidator[T](c.invalidator),
		services.WithUndeleteLogger[T](c.logger),
	}
	return services.NewUndeleteHandler(typ, append(base, opts...)...), nil
}
