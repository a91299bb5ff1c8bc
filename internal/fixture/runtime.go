package fixture

import (
	"context"
	"time"

	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/testutil/containers"
)

// ContainerRequest describes the database container to start.
type ContainerRequest struct {
	Image          string
	Tag            string
	Port           int
	Database       string
	StartupTimeout time.Duration
	Labels         map[string]string
}

// Container is a started database container. Its mapped port and URL never
// change after Start returns.
type Container interface {
	ID() string
	Host() string
	MappedPort() int
	ConnectionURL() string
	Terminate(ctx context.Context) error
}

// Runtime starts database containers. Start blocks until the container is
// started and its port mapping is known.
type Runtime interface {
	Start(ctx context.Context, req ContainerRequest) (Container, error)
}

// DockerRuntime starts containers through testcontainers.
type DockerRuntime struct{}

// Start implements Runtime.
func (DockerRuntime) Start(ctx context.Context, req ContainerRequest) (Container, error) {
	c, err := containers.NewMongoContainer(ctx, &containers.MongoConfig{
		Image:          req.Image,
		ImageTag:       req.Tag,
		Port:           req.Port,
		Database:       req.Database,
		StartupTimeout: req.StartupTimeout,
		Labels:         req.Labels,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Database is the driver surface the fixture needs.
type Database interface {
	Inserter
	Cleaner
	State(ctx context.Context) (mongostore.ConnState, error)
	Disconnect(ctx context.Context) error
}

// Dialer creates a database client for url. It must not wait for the server.
type Dialer func(ctx context.Context, url string) (Database, error)

// MongoDialer returns a Dialer backed by mongostore.
func MongoDialer(opts mongostore.Options) Dialer {
	return func(ctx context.Context, url string) (Database, error) {
		return mongostore.Connect(ctx, url, opts)
	}
}
