package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DatabaseType represents different database backend options
type DatabaseType string

const (
	DatabaseTypeBadger   DatabaseType = "badger"
	DatabaseTypeBolt     DatabaseType = "bolt"
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMemory   DatabaseType = "memory"
)

// Options selects and configures a storage engine.
type Options struct {
	Type DatabaseType
	// Path is the badger directory or bolt file.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// NewStore creates a store with the specified database type
//
// Database Types:
// - badger: LSM-tree database (default), directory based, optimistic transactions
// - bolt: compact B+ tree database in a single file, one writer at a time
// - postgres: shared server, serializable transactions over one key/value table
// - memory: process-local, for tests and dry runs
func NewStore(ctx context.Context, opts Options, logger *logrus.Logger) (Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	switch opts.Type {
	case DatabaseTypeBolt:
		path := opts.Path
		if !strings.HasSuffix(path, ".bolt") {
			path = path + ".bolt"
		}
		return NewBoltStore(path)

	case DatabaseTypeBadger, "":
		return NewBadgerStore(opts.Path, logger)

	case DatabaseTypePostgres:
		return NewPostgresStore(ctx, opts.DSN, logger)

	case DatabaseTypeMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", opts.Type)
	}
}

// ParseDatabaseType validates a configured engine name.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch t := DatabaseType(strings.ToLower(strings.TrimSpace(s))); t {
	case DatabaseTypeBadger, DatabaseTypeBolt, DatabaseTypePostgres, DatabaseTypeMemory:
		return t, nil
	case "":
		return DatabaseTypeBadger, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}
