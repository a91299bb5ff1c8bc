package fixture

import (
	"context"
	"slices"
)

// AuthRecord is the API key document seeded for the test run.
type AuthRecord struct {
	Key   string   `bson:"key" json:"key"`
	Roles []string `bson:"roles" json:"roles"`
}

// authRoles grants every mutating permission the API checks.
var authRoles = []string{
	"cache:clear",
	"company:update",
	"core:create", "core:update", "core:delete",
	"crew:create", "crew:update", "crew:delete",
	"dragon:create", "dragon:update", "dragon:delete",
	"fairing:create", "fairing:update", "fairing:delete",
	"history:create", "history:update", "history:delete",
	"landpad:create", "landpad:update", "landpad:delete",
	"launch:create", "launch:update", "launch:delete",
	"launchpad:create", "launchpad:update", "launchpad:delete",
	"payload:create", "payload:update", "payload:delete",
	"roadster:update",
	"rocket:create", "rocket:update", "rocket:delete",
	"ship:create", "ship:update", "ship:delete",
	"starlink:create", "starlink:update", "starlink:delete",
	"user:create", "user:update", "user:delete",
}

// AuthRoles returns a copy of the roles granted to the seeded key.
func AuthRoles() []string {
	return slices.Clone(authRoles)
}

// Inserter writes a single document.
type Inserter interface {
	InsertOne(ctx context.Context, database, collection string, doc any) error
}

// SeedAuth inserts one AuthRecord for key into database.collection.
// Failures are returned as *SeedError and are not retried.
func SeedAuth(ctx context.Context, db Inserter, database, collection, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	record := AuthRecord{Key: key, Roles: AuthRoles()}
	if err := db.InsertOne(ctx, database, collection, record); err != nil {
		return &SeedError{Database: database, Collection: collection, Err: err}
	}
	return nil
}
