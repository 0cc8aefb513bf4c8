// Package historydb picks and opens the history backend for CLI commands.
package historydb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fuhaigao/inference-server/pkg/dotdir"
	"github.com/fuhaigao/inference-server/pkg/history"
	"github.com/fuhaigao/inference-server/pkg/history/postgres"
	"github.com/fuhaigao/inference-server/pkg/history/sqlite"
)

// DefaultFileName is the database created in the config dir when history is
// enabled without an explicit backend.
const DefaultFileName = "history.db"

// ErrDisabled is returned by Open when no backend is configured and history
// is not enabled.
var ErrDisabled = errors.New("history is disabled; set history.enabled or pass --sqlite/--postgres")

// Options selects a backend.
type Options struct {
	SQLitePath  string
	PostgresDSN string
	Enabled     bool
	ConfigDir   string
}

// Backend names the backend Resolve picked.
type Backend struct {
	// Kind is "sqlite" or "postgres".
	Kind string

	// Target is the sqlite path or the postgres DSN.
	Target string
}

// Resolve picks a backend. An explicit sqlite path wins over a postgres DSN,
// and an enabled history with neither uses history.db in the config dir.
func Resolve(opts Options) (Backend, error) {
	if p := strings.TrimSpace(opts.SQLitePath); p != "" {
		return Backend{Kind: "sqlite", Target: p}, nil
	}

	if dsn := strings.TrimSpace(opts.PostgresDSN); dsn != "" {
		return Backend{Kind: "postgres", Target: dsn}, nil
	}

	if !opts.Enabled {
		return Backend{}, ErrDisabled
	}

	path, err := dotdir.NewManager().File(opts.ConfigDir, DefaultFileName)
	if err != nil {
		return Backend{}, fmt.Errorf("resolving history database: %w", err)
	}
	return Backend{Kind: "sqlite", Target: path}, nil
}

// Open resolves and opens the backend.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (history.Driver, error) {
	b, err := Resolve(opts)
	if err != nil {
		return nil, err
	}

	switch b.Kind {
	case "postgres":
		d, err := postgres.NewDriver(ctx, b.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL history driver: %w", err)
		}
		logger.Debug("using PostgreSQL history")
		return d, nil
	default:
		d, err := sqlite.NewDriver(ctx, b.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite history driver: %w", err)
		}
		logger.Debug("using SQLite history", "path", b.Target)
		return d, nil
	}
}
