package fixture

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// Cleaner lists collections and empties them.
type Cleaner interface {
	CollectionNames(ctx context.Context, database string) ([]string, error)
	DeleteAll(ctx context.Context, database, collection string) (int64, error)
}

// CleanDatabase deletes every document from every collection of database,
// concurrently. Collections and their indexes are left in place.
//
// A failed delete does not stop the others; failures are reported together
// as a *ResetError and nothing is rolled back. The returned count covers the
// deletes that succeeded.
func CleanDatabase(ctx context.Context, db Cleaner, database string) (int64, error) {
	names, err := db.CollectionNames(ctx, database)
	if err != nil {
		return 0, &ResetError{Database: database, Err: err}
	}

	var (
		g       multierror.Group
		deleted atomic.Int64
		mu      sync.Mutex
		failed  []string
	)
	for _, name := range names {
		g.Go(func() error {
			n, err := db.DeleteAll(ctx, database, name)
			if err != nil {
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
				return err
			}
			deleted.Add(n)
			return nil
		})
	}

	if err := g.Wait().ErrorOrNil(); err != nil {
		slices.Sort(failed)
		return deleted.Load(), &ResetError{Database: database, Failed: failed, Err: err}
	}
	return deleted.Load(), nil
}
