package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/lib/pq"
)

// Postgres stores rows in one table per entity kind.
type Postgres struct {
	db *sql.DB

	mu      sync.Mutex
	ensured bool
}

// OpenPostgres prepares a connection pool. It does not connect: the first
// delivery or Ping does, so the tool starts while offline.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("remote: opening postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Upsert(ctx context.Context, row Row) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, workspace, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			workspace = EXCLUDED.workspace,
			data = EXCLUDED.data,
			updated_at = now()`, pq.QuoteIdentifier(row.Entity.Table()))

	_, err := p.db.ExecContext(ctx, query, row.ID, string(row.Workspace), string(row.Data))
	if err != nil {
		return classify(fmt.Sprintf("upsert %s %s", row.Entity, row.ID), err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, entity model.EntityType, id string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(entity.Table()))
	if _, err := p.db.ExecContext(ctx, query, id); err != nil {
		return classify(fmt.Sprintf("delete %s %s", entity, id), err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured {
		return nil
	}

	for _, et := range model.EntityTypes {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			workspace  TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pq.QuoteIdentifier(et.Table()))
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return classify("creating table "+et.Table(), err)
		}
	}
	p.ensured = true
	return nil
}

// classify maps driver errors onto the package sentinels. Connection-level
// SQLSTATE classes (08 connection exception, 53 insufficient resources,
// 57 operator intervention) are treated as unavailability.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
		case "28":
			return fmt.Errorf("%w: %s: %v", ErrUnauthorized, op, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrRejected, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrRejected, op, err)
}
