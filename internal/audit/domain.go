package audit

import "time"

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	From     *time.Time
	To       *time.Time
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	Gym      *string
	Page     int
	PageSize int
}

// TimelineRow is one audited mutation.
type TimelineRow struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Gym      string         `json:"gym,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo is cursor-free paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"data"`
	Paging PagingInfo    `json:"paging"`
}
