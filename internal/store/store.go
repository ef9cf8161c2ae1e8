// Package store implements core.Store on Postgres and MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
)

// ErrAccountOwned is returned by SaveAccounts when an account id already
// belongs to another user.
var ErrAccountOwned = errors.New("account id belongs to another user")

// Backend is a core.Store with a connection lifecycle.
type Backend interface {
	core.Store
	SaveAccounts(ctx context.Context, userID uuid.UUID, accounts []core.Account) error
	Ping(ctx context.Context) error
	Close()
	Driver() string
}

// Open connects to the backend selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres, "":
		pg, err := NewPostgres(ctx, cfg.Database, cfg.Store.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
			slog.Info("database schema applied")
		}
		return pg, nil
	case config.DriverMongo:
		m, err := NewMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
