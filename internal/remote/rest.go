package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBody          = 4 << 10
	userAgent             = "github.com/theirongolddev/fintrack/1.0"
)

// REST talks to a PostgREST-compatible API (as exposed by Supabase) under
// <base>/rest/v1/<table>.
type REST struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewREST creates a client for the API at baseURL. A zero timeout uses the
// default of ten seconds per request.
func NewREST(baseURL, apiKey string, timeout time.Duration) *REST {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		timeout: timeout,
		http:    &http.Client{},
	}
}

type restRow struct {
	ID        string          `json:"id"`
	Workspace model.Workspace `json:"workspace"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Upsert inserts the row or merges it into the existing row with the same id.
func (r *REST) Upsert(ctx context.Context, row Row) error {
	body, err := json.Marshal([]restRow{{
		ID:        row.ID,
		Workspace: row.Workspace,
		Data:      row.Data,
		UpdatedAt: time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("remote: encoding %s %s: %w", row.Entity, row.ID, err)
	}

	path := "/rest/v1/" + row.Entity.Table() + "?on_conflict=id"
	return r.do(ctx, http.MethodPost, path, body, func(req *http.Request) {
		req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	})
}

// Delete removes the row. Deleting a row that does not exist succeeds.
func (r *REST) Delete(ctx context.Context, entity model.EntityType, id string) error {
	path := "/rest/v1/" + entity.Table() + "?id=eq." + url.QueryEscape(id)
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

// Ping checks that the API answers and accepts the key.
func (r *REST) Ping(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/rest/v1/", nil, nil)
}

func (r *REST) Close() error {
	r.http.CloseIdleConnections()
	return nil
}

func (r *REST) do(ctx context.Context, method, path string, body []byte, prepare func(*http.Request)) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remote: creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	if prepare != nil {
		prepare(req)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}
