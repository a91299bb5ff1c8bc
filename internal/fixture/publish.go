package fixture

import (
	"os"
	"sync"
)

// Publisher makes the connection URL discoverable by the application under test.
type Publisher interface {
	Publish(key, value string) error
	Unpublish(key string) error
}

// EnvPublisher publishes through process environment variables. Unpublish
// restores whatever value the variable had before Publish.
type EnvPublisher struct {
	mu       sync.Mutex
	previous map[string]*string
}

// NewEnvPublisher creates an EnvPublisher.
func NewEnvPublisher() *EnvPublisher {
	return &EnvPublisher{previous: make(map[string]*string)}
}

// Publish implements Publisher.
func (p *EnvPublisher) Publish(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, saved := p.previous[key]; !saved {
		if old, ok := os.LookupEnv(key); ok {
			p.previous[key] = &old
		} else {
			p.previous[key] = nil
		}
	}
	return os.Setenv(key, value)
}

// Unpublish implements Publisher.
func (p *EnvPublisher) Unpublish(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, saved := p.previous[key]
	if !saved {
		return nil
	}
	delete(p.previous, key)

	if old == nil {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, *old)
}
