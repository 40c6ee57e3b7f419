package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoalItem is a shopping-list entry attached to a savings goal.
type GoalItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Purchased bool            `json:"purchased"`
}

// GoalMember is a participant in a shared goal.
type GoalMember struct {
	Name        string          `json:"name"`
	Contributed decimal.Decimal `json:"contributed"`
}

// SavingsGoal tracks saving toward a target amount.
//
// CurrentAmount is never derived from Items; it only moves through explicit
// contributions and item purchases.
type SavingsGoal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      time.Time       `json:"deadline,omitempty"`
	Items         []GoalItem      `json:"items,omitempty"`
	Members       []GoalMember    `json:"members,omitempty"`
	Workspace     Workspace       `json:"workspace"`
}

func (g SavingsGoal) RecordID() string { return g.ID }
func (SavingsGoal) Kind() EntityType { return EntityGoal }
func (g SavingsGoal) Scope() Workspace { return g.Workspace }

// Clone returns a copy that shares no slices with g.
func (g SavingsGoal) Clone() SavingsGoal {
	out := g
	out.Items = append([]GoalItem(nil), g.Items...)
	out.Members = append([]GoalMember(nil), g.Members...)
	return out
}

func (g SavingsGoal) Validate() error {
	if g.ID == "" {
		return invalid(EntityGoal, "missing id")
	}
	if strings.TrimSpace(g.Name) == "" {
		return invalid(EntityGoal, "missing name")
	}
	if !g.TargetAmount.IsPositive() {
		return invalid(EntityGoal, "target must be positive")
	}
	if g.CurrentAmount.IsNegative() {
		return invalid(EntityGoal, "current amount must not be negative")
	}
	seen := make(map[string]struct{}, len(g.Items))
	for _, it := range g.Items {
		if it.ID == "" {
			return invalid(EntityGoal, "item %q missing id", it.Name)
		}
		if _, dup := seen[it.ID]; dup {
			return invalid(EntityGoal, "duplicate item id %q", it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Price.IsNegative() {
			return invalid(EntityGoal, "item %q has negative price", it.Name)
		}
	}
	return checkWorkspace(EntityGoal, g.Workspace)
}
