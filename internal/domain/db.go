package domain

import "context"

// Database defines lifecycle operations for the underlying database. The
// implementation owns its migrations.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
