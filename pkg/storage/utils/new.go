// Package storageutils builds a profile store from configuration.
package storageutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/banter/pkg/storage"
	"github.com/papercomputeco/banter/pkg/storage/inmemory"
	"github.com/papercomputeco/banter/pkg/storage/postgres"
	"github.com/papercomputeco/banter/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// DriverType is one of "sqlite", "postgres" or "memory".
	DriverType  string
	SQLitePath  string
	PostgresDSN string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.DriverType {
	case "sqlite":
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite profile store requires a database path")
		}
		return sqlite.NewDriver(ctx, o.SQLitePath)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres profile store requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	case "memory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.DriverType)
	}
}
