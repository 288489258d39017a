package service

import (
	"context"
	"fmt"
	"time"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

// Window is the reporting period of one run: the anchored weekly range plus
// the part of the local calendar day that ends with it.
type Window struct {
	Anchor   time.Time
	Weekly   repository.TimeRange
	Daily    repository.TimeRange
	Location *time.Location
}

// FetchRange covers both blocks so one read serves the whole run.
func (w Window) FetchRange() repository.TimeRange {
	r := w.Weekly
	if w.Daily.Start.Before(r.Start) {
		r.Start = w.Daily.Start
	}
	if w.Daily.End.After(r.End) {
		r.End = w.Daily.End
	}
	return r
}

// MostRecentMonday returns 00:00 of the Monday on or before now in loc.
func MostRecentMonday(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// DailyWindow runs from local midnight of the day containing end up to end.
func DailyWindow(end time.Time, loc *time.Location) repository.TimeRange {
	local := end.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return repository.TimeRange{Start: start, End: local}
}

// ResolveWindow reads the owner's anchor, creating it on first use. The
// weekly range always ends at now; an anchor in the future yields an empty
// range rather than an error.
func ResolveWindow(ctx context.Context, store repository.AnalysisStore, key models.AnalysisKey, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if store == nil {
		return Window{}, fmt.Errorf("%w: analysis store not configured", ErrPersistence)
	}
	anchor, err := store.GetAnchor(ctx, key)
	if err != nil {
		return Window{}, fmt.Errorf("%w: read anchor %s/%s: %w", ErrPersistence, key.Scope, key.OwnerID, err)
	}
	var start time.Time
	if anchor != nil && !anchor.IsZero() {
		start = anchor.In(loc)
	} else {
		start = MostRecentMonday(now, loc)
		if err := store.SetAnchor(ctx, key, start.UTC()); err != nil {
			return Window{}, fmt.Errorf("%w: write anchor %s/%s: %w", ErrPersistence, key.Scope, key.OwnerID, err)
		}
	}
	end := now.In(loc)
	if start.After(end) {
		start = end
	}
	return Window{
		Anchor:   start,
		Weekly:   repository.TimeRange{Start: start, End: end},
		Daily:    DailyWindow(end, loc),
		Location: loc,
	}, nil
}
