package containers

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoContainer wraps a testcontainers mongodb module instance.
// The mapped port and connection URL are fixed once the container has started.
type MongoContainer struct {
	container    testcontainers.Container
	host         string
	internalPort int
	mappedPort   int
	url          string
	terminate    *CleanupOnce
}

// MongoConfig holds configuration for MongoDB container creation.
type MongoConfig struct {
	// Image repository (default: "mongo")
	Image string
	// Image tag (default: "4.4")
	ImageTag string
	// Port mongod listens on inside the container (default: 27017)
	Port int
	// Database named in the connection URL (default: "spacex")
	Database string
	// StartupTimeout bounds the wait for the server to accept connections (default: 2m)
	StartupTimeout time.Duration
	// Labels are attached to the container
	Labels map[string]string
}

// DefaultMongoConfig returns a MongoConfig with sensible defaults.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Image:          "mongo",
		ImageTag:       "4.4",
		Port:           27017,
		Database:       "spacex",
		StartupTimeout: 2 * time.Minute,
	}
}

// NewMongoContainer starts a MongoDB container and blocks until it listens on
// the configured port. If config is nil, uses DefaultMongoConfig().
func NewMongoContainer(ctx context.Context, config *MongoConfig) (*MongoContainer, error) {
	if config == nil {
		defaultCfg := DefaultMongoConfig()
		config = &defaultCfg
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid MongoDB port %d", config.Port)
	}
	startupTimeout := config.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = DefaultMongoConfig().StartupTimeout
	}

	portSpec := nat.Port(fmt.Sprintf("%d/tcp", config.Port))

	opts := []testcontainers.ContainerCustomizer{
		// The module exposes and waits on 27017; mongod ignores the exposed
		// port unless told to listen on it, so the request is rewritten.
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{string(portSpec)}
			req.Cmd = []string{"mongod", "--bind_ip_all", "--port", strconv.Itoa(config.Port)}
			req.WaitingFor = wait.ForAll(
				wait.ForLog("Waiting for connections"),
				wait.ForListeningPort(portSpec),
			).WithDeadline(startupTimeout)
			if len(config.Labels) > 0 {
				if req.Labels == nil {
					req.Labels = make(map[string]string, len(config.Labels))
				}
				maps.Copy(req.Labels, config.Labels)
			}
			return nil
		}),
	}

	mongoContainer, err := mongodb.Run(ctx, fmt.Sprintf("%s:%s", config.Image, config.ImageTag), opts...)
	if err != nil {
		// Run may return a created-but-failed container.
		if mongoContainer != nil {
			_ = mongoContainer.Terminate(context.Background())
		}
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}
	container := mongoContainer.Container

	host, err := container.Host(ctx)
	if err != nil {
		// Use background context for cleanup to ensure it succeeds even if parent ctx expired
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, portSpec)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	c := &MongoContainer{
		container:    container,
		host:         host,
		internalPort: config.Port,
		mappedPort:   mappedPort.Int(),
		url:          mongoURL(host, mappedPort.Int(), config.Database),
	}
	c.terminate = NewCleanupOnce(func(ctx context.Context) error {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
		return nil
	})
	return c, nil
}

// Host returns the host address where the container is accessible.
func (c *MongoContainer) Host() string {
	return c.host
}

// InternalPort returns the port mongod listens on inside the container.
func (c *MongoContainer) InternalPort() int {
	return c.internalPort
}

// MappedPort returns the host port mapped to the internal port.
func (c *MongoContainer) MappedPort() int {
	return c.mappedPort
}

// ConnectionURL returns mongodb://<host>:<mapped port>/<database>.
func (c *MongoContainer) ConnectionURL() string {
	return c.url
}

// ID returns the Docker container ID.
func (c *MongoContainer) ID() string {
	return c.container.GetContainerID()
}

// Running reports whether the container is running and has not been terminated.
func (c *MongoContainer) Running() bool {
	return !c.terminate.Done() && c.container.IsRunning()
}

// Terminate stops and removes the container and waits for removal.
// Calling it more than once is safe; later calls return the first result.
func (c *MongoContainer) Terminate(ctx context.Context) error {
	if c == nil || c.container == nil {
		return nil
	}
	return c.terminate.Do(ctx)
}
