// Package remote defines the backend the sync worker delivers to and its
// PostgreSQL and REST implementations, plus an in-memory backend for tests. Every backend stores one
// row per record keyed by the client-generated id, so repeated deliveries
// are harmless.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
)

var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("remote: backend unavailable")
	// ErrRejected indicates the backend refused the write.
	ErrRejected = errors.New("remote: write rejected")
	// ErrUnauthorized indicates the credentials were refused.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrRateLimited indicates the backend asked us to slow down.
	ErrRateLimited = errors.New("remote: rate limited")
	// ErrNoBackend is returned by New when sync is disabled.
	ErrNoBackend = errors.New("remote: no backend configured")
)

// Row is one record as stored remotely.
type Row struct {
	Entity    model.EntityType `json:"-"`
	ID        string           `json:"id"`
	Workspace model.Workspace  `json:"workspace"`
	Data      json.RawMessage  `json:"data"`
}

// Backend is the remote store contract: idempotent upsert and delete by id.
type Backend interface {
	Upsert(ctx context.Context, row Row) error
	Delete(ctx context.Context, entity model.EntityType, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverREST     = "rest"
	DriverNone     = "none"
)

// Config selects and configures a backend.
type Config struct {
	Driver  string
	DSN     string
	URL     string
	APIKey  string
	Timeout time.Duration
}

// New returns the backend described by cfg.
func New(cfg Config) (Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("remote: postgres driver needs a database URL")
		}
		return OpenPostgres(cfg.DSN)
	case DriverREST:
		if cfg.URL == "" {
			return nil, errors.New("remote: rest driver needs an API URL")
		}
		return NewREST(cfg.URL, cfg.APIKey, cfg.Timeout), nil
	case DriverNone, "":
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("remote: unknown driver %q", cfg.Driver)
}

// Retryable reports whether err is a transient condition.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}
