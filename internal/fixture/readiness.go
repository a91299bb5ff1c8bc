package fixture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tphakala/dbfixture/internal/datastore/mongostore"
	"github.com/tphakala/dbfixture/internal/logger"
)

// AwaitReady blocks until the database client reports connected.
//
// The state is probed every ready_interval. Only "connecting" is retried;
// any other state or a driver fault returns *ConnectionFaultError at once.
// When ready_timeout elapses, or ctx's deadline passes, *TimeoutError is
// returned. A ready_timeout of zero waits until ctx is done.
func (f *Fixture) AwaitReady(ctx context.Context) error {
	db, _, err := f.database()
	if err != nil {
		return err
	}

	if err := f.awaitConnected(ctx, db); err != nil {
		return err
	}

	f.mu.Lock()
	if f.db == db {
		f.ready = true
	}
	f.mu.Unlock()
	return nil
}

func (f *Fixture) awaitConnected(ctx context.Context, db Database) error {
	backoff := retry.NewConstant(f.settings.ReadyInterval.Std())
	if timeout := f.settings.ReadyTimeout.Std(); timeout > 0 {
		backoff = retry.WithMaxDuration(timeout, backoff)
	}

	var (
		started = time.Now()
		polls   int
		last    = mongostore.StateConnecting
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		polls++
		f.metrics.IncReadinessPoll()

		state, err := db.State(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &ConnectionFaultError{State: state, Err: err}
		}
		last = state

		switch state {
		case mongostore.StateConnected:
			return nil
		case mongostore.StateConnecting:
			f.log.Debug("database not ready yet", logger.Int("poll", polls))
			return retry.RetryableError(errNotReady)
		default:
			return &ConnectionFaultError{State: state}
		}
	})

	elapsed := time.Since(started)
	switch {
	case err == nil:
		f.metrics.ObserveReadinessWait(elapsed)
		f.log.Info("database ready",
			logger.Int("polls", polls),
			logger.Duration("elapsed", elapsed))
		return nil
	case errors.Is(err, errNotReady), errors.Is(err, context.DeadlineExceeded):
		terr := &TimeoutError{Polls: polls, Elapsed: elapsed, LastState: last, Err: err}
		f.log.Error("database readiness timed out", logger.Error(terr))
		return terr
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("await readiness cancelled after %d polls: %w", polls, err)
	default:
		f.log.Error("database connection fault", logger.Error(err))
		return err
	}
}
