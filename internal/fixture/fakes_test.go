package fixture

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/dbfixture/internal/conf"
	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/logger"
)

// recorder collects lifecycle events across fakes so tests can assert order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

type fakeContainer struct {
	rec          *recorder
	host         string
	port         int
	database     string
	terminateErr error

	mu         sync.Mutex
	terminated int
}

func (c *fakeContainer) ID() string      { return "fake-mongo-1" }
func (c *fakeContainer) Host() string    { return c.host }
func (c *fakeContainer) MappedPort() int { return c.port }
func (c *fakeContainer) ConnectionURL() string {
	return fmt.Sprintf("mongodb://%s:%d/%s", c.host, c.port, c.database)
}

func (c *fakeContainer) Terminate(context.Context) error {
	c.mu.Lock()
	c.terminated++
	c.mu.Unlock()
	c.rec.add("terminate")
	return c.terminateErr
}

func (c *fakeContainer) terminations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

type fakeRuntime struct {
	rec       *recorder
	container *fakeContainer
	err       error

	mu       sync.Mutex
	requests []ContainerRequest
}

func (r *fakeRuntime) Start(_ context.Context, req ContainerRequest) (Container, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	r.rec.add("start")
	if r.err != nil {
		return nil, r.err
	}
	r.container.database = req.Database
	return r.container, nil
}

func (r *fakeRuntime) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// fakeDB is an in-memory Database. States are returned in order; the last
// one repeats.
type fakeDB struct {
	rec *recorder

	mu          sync.Mutex
	states      []mongostore.ConnState
	stateErr    error
	polls       int
	collections map[string]map[string][]any
	insertErr   error
	listErr     error
	deleteErr   map[string]error
	disconnects int
}

func newFakeDB(rec *recorder) *fakeDB {
	return &fakeDB{
		rec:         rec,
		states:      []mongostore.ConnState{mongostore.StateConnected},
		collections: make(map[string]map[string][]any),
		deleteErr:   make(map[string]error),
	}
}

func (d *fakeDB) State(ctx context.Context) (mongostore.ConnState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return mongostore.StateConnecting, err
	}
	i := min(d.polls, len(d.states)-1)
	d.polls++
	return d.states[i], d.stateErr
}

func (d *fakeDB) pollCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

func (d *fakeDB) InsertOne(_ context.Context, database, collection string, doc any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.insertErr != nil {
		return d.insertErr
	}
	d.ensure(database, collection)
	d.collections[database][collection] = append(d.collections[database][collection], doc)
	return nil
}

// ensure creates a collection, the way the API's fixture setup does.
func (d *fakeDB) ensure(database, collection string) {
	if d.collections[database] == nil {
		d.collections[database] = make(map[string][]any)
	}
	if _, ok := d.collections[database][collection]; !ok {
		d.collections[database][collection] = nil
	}
}

func (d *fakeDB) CollectionNames(_ context.Context, database string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	var names []string
	for name := range d.collections[database] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (d *fakeDB) DeleteAll(_ context.Context, database, collection string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.deleteErr[collection]; err != nil {
		return 0, err
	}
	coll, ok := d.collections[database][collection]
	if !ok {
		return 0, errors.New("collection does not exist")
	}
	d.collections[database][collection] = coll[:0]
	return int64(len(coll)), nil
}

func (d *fakeDB) Disconnect(context.Context) error {
	d.mu.Lock()
	d.disconnects++
	d.mu.Unlock()
	d.rec.add("disconnect")
	return nil
}

func (d *fakeDB) count(database, collection string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.collections[database][collection])
}

func (d *fakeDB) docs(database, collection string) []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.collections[database][collection])
}

func (d *fakeDB) hasCollection(database, collection string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.collections[database][collection]
	return ok
}

type fakePublisher struct {
	rec        *recorder
	publishErr error

	mu     sync.Mutex
	values map[string]string
}

func (p *fakePublisher) Publish(key, value string) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
	p.rec.add("publish")
	return nil
}

func (p *fakePublisher) Unpublish(key string) error {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
	p.rec.add("unpublish")
	return nil
}

func (p *fakePublisher) get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok
}

// harness wires a Fixture to fakes.
type harness struct {
	rec       *recorder
	container *fakeContainer
	runtime   *fakeRuntime
	db        *fakeDB
	publisher *fakePublisher
	log       logger.Logger
	dialErr   error
	dials     int
	fixture   *Fixture
}

func testSettings() conf.FixtureSettings {
	s := conf.Defaults()
	s.ReadyInterval = conf.Duration(5 * time.Millisecond)
	s.ReadyTimeout = conf.Duration(time.Second)
	s.StopTimeout = conf.Duration(5 * time.Second)
	return s
}

func newHarness(settings conf.FixtureSettings, mutate ...func(*harness)) (*harness, error) {
	rec := &recorder{}
	h := &harness{
		rec:       rec,
		container: &fakeContainer{rec: rec, host: "localhost", port: 32768},
		db:        newFakeDB(rec),
		publisher: &fakePublisher{rec: rec, values: make(map[string]string)},
	}
	h.runtime = &fakeRuntime{rec: rec, container: h.container}
	h.log = logger.NewNop()
	for _, m := range mutate {
		m(h)
	}

	f, err := New(&settings,
		WithLogger(h.log),
		WithRuntime(h.runtime),
		WithPublisher(h.publisher),
		WithDialer(func(context.Context, string) (Database, error) {
			h.dials++
			if h.dialErr != nil {
				return nil, h.dialErr
			}
			return h.db, nil
		}),
	)
	if err != nil {
		return nil, err
	}
	h.fixture = f
	return h, nil
}
