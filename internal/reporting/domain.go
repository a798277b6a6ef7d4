package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// GroupBy selects the category payments are bucketed by.
type GroupBy string

const (
	GroupByType   GroupBy = "type"
	GroupByMethod GroupBy = "method"
)

// ParseGroupBy validates a grouping; empty means by type.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return GroupByType, nil
	case GroupByType, GroupByMethod:
		return g, nil
	default:
		return "", fmt.Errorf("%w: group_by must be type or method", shared.ErrValidation)
	}
}

// Filter scopes a summary to a gym and an optional window.
type Filter struct {
	Gym     *tenant.Gym
	From    *time.Time
	To      *time.Time
	GroupBy GroupBy
}

// Group is one bucket of a summary.
type Group struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// Summary is a grouped total over one ledger.
type Summary struct {
	Groups []Group `json:"groups"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

// Dashboard combines both ledgers for one scope.
type Dashboard struct {
	Gym              *tenant.Gym `json:"gym,omitempty"`
	From             *time.Time  `json:"from,omitempty"`
	To               *time.Time  `json:"to,omitempty"`
	PaymentsByType   Summary     `json:"payments_by_type"`
	PaymentsByMethod Summary     `json:"payments_by_method"`
	Sales            Summary     `json:"sales"`
	Revenue          float64     `json:"revenue"`
}

func summarize(groups []Group) Summary {
	if groups == nil {
		groups = []Group{}
	}
	var (
		cents int64
		count int
	)
	for _, g := range groups {
		cents += shared.Cents(g.Total)
		count += g.Count
	}
	return Summary{Groups: groups, Total: float64(cents) / 100, Count: count}
}
