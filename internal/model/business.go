package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a business customer.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Workspace Workspace `json:"workspace"`
}

func (c Client) RecordID() string { return c.ID }
func (Client) Kind() EntityType { return EntityClient }
func (c Client) Scope() Workspace { return c.Workspace }

func (c Client) Validate() error {
	if c.ID == "" {
		return invalid(EntityClient, "missing id")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid(EntityClient, "missing name")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return invalid(EntityClient, "malformed email %q", c.Email)
	}
	return checkWorkspace(EntityClient, c.Workspace)
}

// Product is a sellable item referenced by quotes.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Workspace   Workspace       `json:"workspace"`
}

func (p Product) RecordID() string { return p.ID }
func (Product) Kind() EntityType { return EntityProduct }
func (p Product) Scope() Workspace { return p.Workspace }

func (p Product) Validate() error {
	if p.ID == "" {
		return invalid(EntityProduct, "missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid(EntityProduct, "missing name")
	}
	if p.Price.IsNegative() {
		return invalid(EntityProduct, "price must not be negative")
	}
	return checkWorkspace(EntityProduct, p.Workspace)
}

// QuoteStatus tracks a quote through its negotiation.
type QuoteStatus string

// Quote statuses.
const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// QuoteItem is one line of a quote. Price is captured at quoting time.
type QuoteItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal is quantity times price.
func (qi QuoteItem) LineTotal() decimal.Decimal {
	return qi.Price.Mul(decimal.NewFromInt(int64(qi.Quantity)))
}

// Quote is a price offer to a client.
type Quote struct {
	ID         string      `json:"id"`
	Number     string      `json:"number"`
	ClientID   string      `json:"clientId"`
	Items      []QuoteItem `json:"items"`
	Status     QuoteStatus `json:"status"`
	IssuedAt   time.Time   `json:"issuedAt"`
	ValidUntil time.Time   `json:"validUntil,omitempty"`
	Workspace  Workspace   `json:"workspace"`
}

func (q Quote) RecordID() string { return q.ID }
func (Quote) Kind() EntityType { return EntityQuote }
func (q Quote) Scope() Workspace { return q.Workspace }

// Clone returns a copy that shares no slices with q.
func (q Quote) Clone() Quote {
	out := q
	out.Items = append([]QuoteItem(nil), q.Items...)
	return out
}

// Total sums every line.
func (q Quote) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (q Quote) Validate() error {
	if q.ID == "" {
		return invalid(EntityQuote, "missing id")
	}
	if q.ClientID == "" {
		return invalid(EntityQuote, "missing client")
	}
	switch q.Status {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected:
	default:
		return invalid(EntityQuote, "unknown status %q", q.Status)
	}
	if len(q.Items) == 0 {
		return invalid(EntityQuote, "quote has no items")
	}
	for i, it := range q.Items {
		if it.ProductID == "" {
			return invalid(EntityQuote, "item %d missing product", i+1)
		}
		if it.Quantity <= 0 {
			return invalid(EntityQuote, "item %d quantity must be positive", i+1)
		}
		if it.Price.IsNegative() {
			return invalid(EntityQuote, "item %d has negative price", i+1)
		}
	}
	if !q.ValidUntil.IsZero() && q.ValidUntil.Before(q.IssuedAt) {
		return invalid(EntityQuote, "valid-until precedes issue date")
	}
	return checkWorkspace(EntityQuote, q.Workspace)
}
