package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
)

// Options selects and locates a backend.
type Options struct {
	Driver       string
	DatabasePath string
	DSN          string
	JSONPath     string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Storage, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLiteStorage(opts.DatabasePath)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		return NewPostgresStorage(ctx, opts.DSN)
	case DriverJSON:
		return NewJSONStorage(opts.JSONPath, WithJSONLogger(logger))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
