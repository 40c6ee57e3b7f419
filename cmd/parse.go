package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/ledger"
	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// parseAmount parses a non-negative money amount such as "12.50".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", model.ErrInvalid, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount must not be negative", model.ErrInvalid)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD, "today", "yesterday" and "tomorrow". An
// empty string yields the zero time.
func parseDate(s string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return time.Time{}, nil
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q (want YYYY-MM-DD)", model.ErrInvalid, s)
	}
	return t, nil
}

func parseFlow(s string) (model.FlowType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "in":
		return model.Income, nil
	case "expense", "out", "":
		return model.Expense, nil
	}
	return "", fmt.Errorf("%w: type %q (want income or expense)", model.ErrInvalid, s)
}

func parseFrequency(s string) (model.Frequency, error) {
	switch f := model.Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "none", "once":
		return "", nil
	case model.Weekly, model.Monthly, model.Yearly:
		return f, nil
	}
	return "", fmt.Errorf("%w: frequency %q (want weekly, monthly or yearly)", model.ErrInvalid, s)
}

// matchID resolves a full id or a unique id prefix against ids.
func matchID(kind model.EntityType, prefix string, ids []string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: missing %s id", model.ErrInvalid, kind)
	}
	var found []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s %s", ledger.ErrNotFound, kind, prefix)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%s id %q is ambiguous (%d matches)", kind, prefix, len(found))
}

func recordIDs[T model.Record](recs []T) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RecordID()
	}
	return ids
}

// inWorkspace keeps records of w; all workspaces when w is empty.
func inWorkspace[T model.Record](recs []T, w model.Workspace) []T {
	if w == "" {
		return recs
	}
	var out []T
	for _, r := range recs {
		if r.Scope() == w {
			out = append(out, r)
		}
	}
	return out
}

// explain turns sentinel errors into friendlier CLI messages.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	}
	return err
}
