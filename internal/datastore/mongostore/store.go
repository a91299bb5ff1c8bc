// Package mongostore is the thin MongoDB access layer used by the fixture.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/auth"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("document not found")

// ConnState is the client's connection state as observed by a probe.
type ConnState int32

// Connection states, in the order a client normally moves through them.
const (
	StateDisconnected ConnState = iota
	StateConnected
	StateConnecting
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateConnecting:
		return "connecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// Store handles the document operations the fixture needs.
type Store interface {
	// State probes the server. A non-nil error is a driver fault, not a
	// "not ready yet" condition.
	State(ctx context.Context) (ConnState, error)

	InsertOne(ctx context.Context, database, collection string, doc any) error
	FindOne(ctx context.Context, database, collection string, filter, out any) error
	Count(ctx context.Context, database, collection string, filter any) (int64, error)

	// CollectionNames lists user collections of database, sorted, without system.* collections.
	CollectionNames(ctx context.Context, database string) ([]string, error)
	// DeleteAll removes every document of a collection, keeping the collection and its indexes.
	DeleteAll(ctx context.Context, database, collection string) (int64, error)

	Disconnect(ctx context.Context) error
}

// Options configures Connect.
type Options struct {
	// PingTimeout bounds a single State probe (default: 2s)
	PingTimeout time.Duration
	// ServerSelectionTimeout bounds server selection for every operation (default: 10s)
	ServerSelectionTimeout time.Duration
	// AppName is reported to the server
	AppName string
}

func (o *Options) applyDefaults() {
	if o.PingTimeout <= 0 {
		o.PingTimeout = 2 * time.Second
	}
	if o.ServerSelectionTimeout <= 0 {
		o.ServerSelectionTimeout = 10 * time.Second
	}
}

type mongoStore struct {
	client      *mongo.Client
	pingTimeout time.Duration
	state       atomic.Int32
}

// Connect creates a client for uri. The driver connects lazily, so Connect does
// not wait for the server; use State to find out when it is reachable.
func Connect(ctx context.Context, uri string, opts Options) (Store, error) {
	opts.applyDefaults()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(opts.ServerSelectionTimeout).
		SetConnectTimeout(opts.PingTimeout)
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	return NewStore(client, opts.PingTimeout), nil
}

// NewStore wraps an existing client, for example the one owned by the
// application under test.
func NewStore(client *mongo.Client, pingTimeout time.Duration) Store {
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}
	s := &mongoStore{client: client, pingTimeout: pingTimeout}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *mongoStore) State(ctx context.Context) (ConnState, error) {
	switch st := ConnState(s.state.Load()); st {
	case StateDisconnected, StateDisconnecting:
		return st, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()

	err := s.client.Ping(pingCtx, readpref.Primary())
	switch {
	case err == nil:
		s.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
		return StateConnected, nil
	case ctx.Err() != nil:
		return ConnState(s.state.Load()), ctx.Err()
	case errors.Is(err, mongo.ErrClientDisconnected):
		return StateDisconnected, nil
	case IsTransient(err):
		return StateConnecting, nil
	default:
		return StateDisconnected, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
}

// IsTransient reports whether err means the server is not reachable yet,
// as opposed to a fault that retrying will not fix. A server selection
// failure is transient only when it was caused by a timeout or the network
// and no server reported an authentication failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var sse topology.ServerSelectionError
	if !errors.As(err, &sse) {
		return isTransientCause(err)
	}
	for _, srv := range sse.Desc.Servers {
		if isAuthFailure(srv.LastError) {
			return false
		}
	}
	return sse.Wrapped == nil || isTransientCause(sse.Wrapped)
}

func isTransientCause(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, topology.ErrServerSelectionTimeout) ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err) ||
		errors.As(err, &netErr)
}

func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	var authErr *auth.Error
	return errors.As(err, &authErr)
}

func (s *mongoStore) InsertOne(ctx context.Context, database, collection string, doc any) error {
	if _, err := s.client.Database(database).Collection(collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert into %s.%s: %w", database, collection, err)
	}
	return nil
}

func (s *mongoStore) FindOne(ctx context.Context, database, collection string, filter, out any) error {
	err := s.client.Database(database).Collection(collection).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find in %s.%s: %w", database, collection, err)
	}
	return nil
}

func (s *mongoStore) Count(ctx context.Context, database, collection string, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	n, err := s.client.Database(database).Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", database, collection, err)
	}
	return n, nil
}

func (s *mongoStore) CollectionNames(ctx context.Context, database string) ([]string, error) {
	names, err := s.client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", database, err)
	}

	names = slices.DeleteFunc(names, func(name string) bool {
		return strings.HasPrefix(name, "system.")
	})
	slices.Sort(names)
	return names, nil
}

func (s *mongoStore) DeleteAll(ctx context.Context, database, collection string) (int64, error) {
	res, err := s.client.Database(database).Collection(collection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents from %s.%s: %w", database, collection, err)
	}
	return res.DeletedCount, nil
}

// Disconnect closes the client. Calling it again is a no-op.
func (s *mongoStore) Disconnect(ctx context.Context) error {
	for {
		st := s.state.Load()
		if ConnState(st) == StateDisconnected || ConnState(st) == StateDisconnecting {
			return nil
		}
		if s.state.CompareAndSwap(st, int32(StateDisconnecting)) {
			break
		}
	}
	defer s.state.Store(int32(StateDisconnected))

	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect MongoDB client: %w", err)
	}
	return nil
}
