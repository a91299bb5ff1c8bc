package fixture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
)

var (
	// ErrNotStarted is returned by operations that need a live container.
	ErrNotStarted = errors.New("fixture database not started")
	// ErrAlreadyStarted is returned by Start while a container is live.
	ErrAlreadyStarted = errors.New("fixture database already started")
	// ErrEmptyKey is returned by InitAuth for an empty key.
	ErrEmptyKey = errors.New("auth key must not be empty")

	errNotReady = errors.New("database still connecting")
)

// ProvisioningError means the container could not be started. No handle is retained.
type ProvisioningError struct {
	Image string
	Port  int
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision %s on port %d: %v", e.Image, e.Port, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// SeedError means the auth record could not be written.
type SeedError struct {
	Database   string
	Collection string
	Err        error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("failed to seed auth record into %s.%s: %v", e.Database, e.Collection, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }

// ResetError means one or more collections could not be emptied. Deletions
// that succeeded on other collections are not rolled back.
type ResetError struct {
	Database string
	// Failed lists the collections whose delete failed, sorted. It is empty
	// when the collections could not be listed at all.
	Failed []string
	Err    error
}

func (e *ResetError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("failed to reset %s: %v", e.Database, e.Err)
	}
	return fmt.Sprintf("failed to reset %s (collections: %s): %v",
		e.Database, strings.Join(e.Failed, ", "), e.Err)
}

func (e *ResetError) Unwrap() error { return e.Err }

// TimeoutError means the database did not report connected before the
// readiness deadline.
type TimeoutError struct {
	Polls     int
	Elapsed   time.Duration
	LastState mongostore.ConnState
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("database not ready after %d polls in %s (last state: %s)",
		e.Polls, e.Elapsed.Round(time.Millisecond), e.LastState)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionFaultError means the client reported a state other than
// connecting or connected, or the driver failed while probing.
type ConnectionFaultError struct {
	State mongostore.ConnState
	Err   error
}

func (e *ConnectionFaultError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("database connection fault: client is %s", e.State)
	}
	return fmt.Sprintf("database connection fault (%s): %v", e.State, e.Err)
}

func (e *ConnectionFaultError) Unwrap() error { return e.Err }
