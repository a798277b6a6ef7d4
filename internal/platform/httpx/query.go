package httpx

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

const dateLayout = "2006-01-02"

// DateRange is an optional [From, To] window.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// URLParamUUID parses a chi URL parameter as a UUID.
func URLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, name, raw)
	}
	return id, nil
}

// QueryGym reads an optional gym filter.
func QueryGym(q url.Values, key string) (*tenant.Gym, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	g, err := tenant.ParseGym(raw)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// QueryUUID reads an optional UUID filter.
func QueryUUID(q url.Values, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, key, raw)
	}
	return &id, nil
}

// QueryDateRange reads from/to. Plain dates are interpreted in loc and a plain
// "to" date covers the whole day.
func QueryDateRange(q url.Values, loc *time.Location) (DateRange, error) {
	var dr DateRange
	from, err := parseTime(q.Get("from"), loc, false)
	if err != nil {
		return dr, err
	}
	to, err := parseTime(q.Get("to"), loc, true)
	if err != nil {
		return dr, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return dr, fmt.Errorf("%w: to is before from", shared.ErrValidation)
	}
	dr.From, dr.To = from, to
	return dr, nil
}

func parseTime(raw string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", shared.ErrValidation, raw)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
