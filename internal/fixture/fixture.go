// Package fixture runs the MongoDB instance that backs the API integration
// tests: it provisions a container, waits for the server, seeds the admin API
// key, empties collections between tests and tears the container down.
//
// A suite typically owns one Fixture from TestMain:
//
//	f, err := fixture.New(nil)
//	...
//	if _, err := f.Start(ctx); err != nil { ... }
//	if err := f.AwaitReady(ctx); err != nil { ... }
//	if err := f.InitAuth(ctx, "test-key"); err != nil { ... }
//	code := m.Run() // each test calls f.CleanAll first
//	_ = f.Stop(ctx)
package fixture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tphakala/dbfixture/internal/conf"
	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/logger"
	"github.com/tphakala/dbfixture/internal/observability/metrics"
	"github.com/tphakala/dbfixture/internal/testutil/containers"
)

// SessionLabel is the container label holding the fixture session ID.
const SessionLabel = "org.dbfixture.session"

// Option customizes a Fixture.
type Option func(*Fixture)

// WithLogger sets the logger (default: info level to stderr).
func WithLogger(l logger.Logger) Option {
	return func(f *Fixture) { f.log = l }
}

// WithRuntime replaces the container runtime (default: DockerRuntime).
func WithRuntime(r Runtime) Option {
	return func(f *Fixture) { f.runtime = r }
}

// WithDialer replaces how the database client is created (default: MongoDialer).
func WithDialer(d Dialer) Option {
	return func(f *Fixture) { f.dial = d }
}

// WithPublisher replaces where the connection URL is published (default: EnvPublisher).
func WithPublisher(p Publisher) Option {
	return func(f *Fixture) { f.publisher = p }
}

// WithMetrics records lifecycle metrics.
func WithMetrics(m *metrics.FixtureMetrics) Option {
	return func(f *Fixture) { f.metrics = m }
}

// Fixture owns one database container and the client connected to it.
// Its methods are safe for concurrent use, but the lifecycle is meant to be
// driven sequentially: Start, AwaitReady, InitAuth, CleanAll per test, Stop.
type Fixture struct {
	settings  conf.FixtureSettings
	session   string
	log       logger.Logger
	runtime   Runtime
	dial      Dialer
	publisher Publisher
	metrics   *metrics.FixtureMetrics

	mu         sync.Mutex
	container  Container
	db         Database
	url        string
	mappedPort int
	ready      bool
	cleanups   *containers.CleanupManager
}

// New creates a Fixture. If settings is nil, uses conf.Defaults().
func New(settings *conf.FixtureSettings, opts ...Option) (*Fixture, error) {
	if settings == nil {
		d := conf.Defaults()
		settings = &d
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture settings: %w", err)
	}

	f := &Fixture{
		settings:  *settings,
		session:   uuid.NewString(),
		runtime:   DockerRuntime{},
		publisher: NewEnvPublisher(),
		dial: MongoDialer(mongostore.Options{
			PingTimeout: settings.PingTimeout.Std(),
			AppName:     "dbfixture",
		}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.New(logger.Options{})
	}
	f.log = f.log.Named("fixture").With(logger.String("session", f.session))
	return f, nil
}

// Settings returns the settings the fixture was built with.
func (f *Fixture) Settings() conf.FixtureSettings {
	return f.settings
}

// Start provisions the database container and blocks until it is started and
// its port mapping is known. The internal port comes from DB_PORT, read now,
// falling back to the configured port. On success the connection URL is
// published under the configured key and a database client is created.
//
// Any failure is returned as *ProvisioningError and leaves nothing running.
func (f *Fixture) Start(ctx context.Context) (Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.container != nil {
		return nil, ErrAlreadyStarted
	}

	image := f.settings.ImageRef()
	port, err := conf.ContainerPort(f.settings.Port)
	if err != nil {
		f.metrics.ObserveStart(0, err)
		return nil, &ProvisioningError{Image: image, Port: f.settings.Port, Err: err}
	}
	fail := func(err error) (Container, error) {
		f.metrics.ObserveStart(0, err)
		f.log.Error("failed to provision fixture database",
			logger.String("image", image), logger.Int("port", port), logger.Error(err))
		return nil, &ProvisioningError{Image: image, Port: port, Err: err}
	}

	f.log.Info("starting fixture database",
		logger.String("image", image),
		logger.Int("port", port))
	started := time.Now()

	req := ContainerRequest{
		Image:          f.settings.Image,
		Tag:            f.settings.ImageTag,
		Port:           port,
		Database:       f.settings.Database,
		StartupTimeout: f.settings.StartupTimeout.Std(),
		Labels:         map[string]string{SessionLabel: f.session},
	}
	c, err := f.runtime.Start(ctx, req)
	if err != nil {
		return fail(err)
	}

	cleanups := containers.NewCleanupManager()
	cleanups.Add("container", c.Terminate)

	mapped := c.MappedPort()
	if mapped <= 0 {
		f.abort(cleanups)
		return fail(fmt.Errorf("runtime reported no mapping for port %d", port))
	}
	url := c.ConnectionURL()

	key := f.settings.URLKey
	if err := f.publisher.Publish(key, url); err != nil {
		f.abort(cleanups)
		return fail(fmt.Errorf("failed to publish connection URL: %w", err))
	}
	cleanups.Add("published URL", func(context.Context) error {
		return f.publisher.Unpublish(key)
	})

	db, err := f.dial(ctx, url)
	if err != nil {
		f.abort(cleanups)
		return fail(err)
	}
	cleanups.Add("database client", db.Disconnect)

	f.container = c
	f.db = db
	f.url = url
	f.mappedPort = mapped
	f.ready = false
	f.cleanups = cleanups

	elapsed := time.Since(started)
	f.metrics.ObserveStart(elapsed, nil)
	f.log.Info("fixture database started",
		logger.String("container_id", c.ID()),
		logger.Any("labels", req.Labels),
		logger.String("url", url),
		logger.Int("mapped_port", mapped),
		logger.Duration("elapsed", elapsed))
	return c, nil
}

// abort undoes a partial Start.
func (f *Fixture) abort(cleanups *containers.CleanupManager) {
	ctx, cancel := f.stopContext(context.Background())
	defer cancel()
	for _, err := range cleanups.Cleanup(ctx) {
		f.log.Warn("cleanup after failed start", logger.Error(err))
	}
}

func (f *Fixture) stopContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout := f.settings.StopTimeout.Std(); timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// MappedPort returns the host port mapped to the database port, or 0 when no
// container is live.
func (f *Fixture) MappedPort() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mappedPort
}

// URL returns the published connection URL, or "" when no container is live.
func (f *Fixture) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// database returns the live client and whether readiness was confirmed.
func (f *Fixture) database() (Database, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil, false, ErrNotStarted
	}
	return f.db, f.ready, nil
}

// InitAuth seeds the admin API key into the auth database.
func (f *Fixture) InitAuth(ctx context.Context, key string) error {
	db, ready, err := f.database()
	if err != nil {
		return err
	}
	if !ready {
		f.log.Warn("seeding before readiness was confirmed")
	}

	err = SeedAuth(ctx, db, f.settings.AuthDatabase, f.settings.AuthCollection, key)
	f.metrics.ObserveSeed(err)
	if err != nil {
		f.log.Error("failed to seed auth record", logger.Error(err))
		return err
	}

	f.log.Info("seeded auth record",
		logger.String("database", f.settings.AuthDatabase),
		logger.String("collection", f.settings.AuthCollection),
		logger.Int("roles", len(authRoles)))
	return nil
}

// CleanAll empties every collection of the application database. The auth
// database is not touched, so the seeded key survives between tests.
func (f *Fixture) CleanAll(ctx context.Context) error {
	db, _, err := f.database()
	if err != nil {
		return err
	}

	deleted, err := CleanDatabase(ctx, db, f.settings.Database)
	f.metrics.ObserveReset(deleted, err)
	if err != nil {
		f.log.Error("failed to reset database", logger.Error(err))
		return err
	}

	f.log.Debug("database reset",
		logger.String("database", f.settings.Database),
		logger.Int64("deleted", deleted))
	return nil
}

// Stop disconnects the client, withdraws the published URL and terminates
// the container, waiting for removal. All steps run even if one fails; the
// handle is discarded either way. Stop on a fixture with no live container
// does nothing.
func (f *Fixture) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.container == nil {
		return nil
	}

	ctx, cancel := f.stopContext(ctx)
	defer cancel()

	errs := f.cleanups.Cleanup(ctx)

	f.container = nil
	f.db = nil
	f.url = ""
	f.mappedPort = 0
	f.ready = false
	f.cleanups = nil
	f.metrics.ObserveStop()

	if len(errs) > 0 {
		merr := multierror.Append(nil, errs...)
		f.log.Warn("fixture database stopped with errors", logger.Error(merr))
		return fmt.Errorf("failed to stop fixture database: %w", merr)
	}

	f.log.Info("fixture database stopped")
	return nil
}
