// Package model defines the finance records tracked by fintrack and the
// entity kinds used by local storage and the sync queue.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid record")

// EntityType names a collection of records.
type EntityType string

// Entity kinds, one per collection.
const (
	EntityTransaction EntityType = "transaction"
	EntityCategory    EntityType = "category"
	EntityBill        EntityType = "bill"
	EntityLoan        EntityType = "loan"
	EntityGoal        EntityType = "goal"
	EntityClient      EntityType = "client"
	EntityProduct     EntityType = "product"
	EntityQuote       EntityType = "quote"
)

// EntityTypes lists every kind in a stable order.
var EntityTypes = []EntityType{
	EntityTransaction,
	EntityCategory,
	EntityBill,
	EntityLoan,
	EntityGoal,
	EntityClient,
	EntityProduct,
	EntityQuote,
}

// ParseEntityType accepts singular or plural names ("tx" is an alias for
// transaction).
func ParseEntityType(s string) (EntityType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "tx", "txs":
		return EntityTransaction, nil
	case "categories":
		return EntityCategory, nil
	case "goals", "savings_goal", "savings_goals":
		return EntityGoal, nil
	}
	s = strings.TrimSuffix(s, "s")
	for _, et := range EntityTypes {
		if string(et) == s {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// StorageKey is the local storage key holding the collection.
func (e EntityType) StorageKey() string {
	switch e {
	case EntityCategory:
		return "categories"
	default:
		return string(e) + "s"
	}
}

// Table is the remote table name for the collection.
func (e EntityType) Table() string {
	switch e {
	case EntityGoal:
		return "savings_goals"
	default:
		return e.StorageKey()
	}
}

// Workspace partitions records into personal and business scopes.
type Workspace string

// Workspaces.
const (
	WorkspacePersonal Workspace = "personal"
	WorkspaceBusiness Workspace = "business"
)

// ParseWorkspace returns the workspace for s; empty means personal.
func ParseWorkspace(s string) (Workspace, error) {
	switch Workspace(strings.ToLower(strings.TrimSpace(s))) {
	case "", WorkspacePersonal:
		return WorkspacePersonal, nil
	case WorkspaceBusiness:
		return WorkspaceBusiness, nil
	}
	return "", fmt.Errorf("%w: unknown workspace %q", ErrInvalid, s)
}

// Record is implemented by every synced entity.
type Record interface {
	RecordID() string
	Kind() EntityType
	Scope() Workspace
	Validate() error
}

// NewID returns a fresh client-generated identifier.
func NewID() string {
	return uuid.NewString()
}

func invalid(kind EntityType, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, kind, fmt.Sprintf(format, args...))
}

func checkWorkspace(kind EntityType, w Workspace) error {
	if w != WorkspacePersonal && w != WorkspaceBusiness {
		return invalid(kind, "unknown workspace %q", w)
	}
	return nil
}
