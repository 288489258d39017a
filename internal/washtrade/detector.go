// Package washtrade flags sibling users who trade the same instrument on the
// same local trading days for a sustained streak.
package washtrade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

const DefaultThresholdDays = 3

type Detector struct {
	Hierarchy  repository.HierarchyResolver
	Executions repository.ExecutionSource
	Logger     *zap.Logger

	// Sides restricts which executions count as activity; empty means all.
	Sides []string
	// Location defines the trading day boundaries.
	Location      *time.Location
	ThresholdDays int
}

// Detect returns the users under masterID that belong to at least one pair
// co-trading a symbol on thresholdDays or more consecutive local days.
// A non-positive thresholdDays uses the detector default.
func (d *Detector) Detect(ctx context.Context, masterID string, window repository.TimeRange, thresholdDays int) (map[string]struct{}, error) {
	if d == nil || d.Hierarchy == nil || d.Executions == nil {
		return map[string]struct{}{}, nil
	}
	if thresholdDays <= 0 {
		thresholdDays = d.ThresholdDays
	}
	users, err := d.Hierarchy.ResolveUsersUnderOwner(ctx, masterID, models.RoleMaster)
	if err != nil {
		return nil, fmt.Errorf("resolve users under master %s: %w", masterID, err)
	}
	if len(users) < 2 {
		return map[string]struct{}{}, nil
	}
	ids := make([]string, 0, len(users))
	siblings := make(map[string]struct{}, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
		siblings[u.ID] = struct{}{}
	}
	records, err := d.Executions.FetchExecutionRecords(ctx, repository.ExecutionQuery{
		UserIDs: ids,
		Range:   window,
		Sides:   d.Sides,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch executions for master %s: %w", masterID, err)
	}
	scoped := records[:0:0]
	for _, rec := range records {
		if _, ok := siblings[rec.UserID]; ok {
			scoped = append(scoped, rec)
		}
	}
	flagged := FlagStreaks(scoped, d.Location, thresholdDays)
	if d.Logger != nil && len(flagged) > 0 {
		d.Logger.Info("wash trading detected",
			zap.String("master_id", masterID),
			zap.Int("flagged_users", len(flagged)),
			zap.Int("threshold_days", thresholdDays),
		)
	}
	return flagged, nil
}

type pair struct {
	a, b string
}

type bucket struct {
	day    int
	symbol string
}

// FlagStreaks is the pure part of the detector.
func FlagStreaks(records []models.ExecutionRecord, loc *time.Location, thresholdDays int) map[string]struct{} {
	if loc == nil {
		loc = time.UTC
	}
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	flagged := make(map[string]struct{})

	usersByBucket := make(map[bucket]map[string]struct{})
	for _, rec := range records {
		if rec.UserID == "" {
			continue
		}
		k := bucket{day: DayOrdinal(rec.ExecutionTime, loc), symbol: rec.SymbolID}
		set, ok := usersByBucket[k]
		if !ok {
			set = make(map[string]struct{})
			usersByBucket[k] = set
		}
		set[rec.UserID] = struct{}{}
	}

	daysBySymbolPair := make(map[string]map[pair][]int)
	for k, set := range usersByBucket {
		if len(set) < 2 {
			continue
		}
		users := make([]string, 0, len(set))
		for u := range set {
			users = append(users, u)
		}
		sort.Strings(users)
		perSymbol, ok := daysBySymbolPair[k.symbol]
		if !ok {
			perSymbol = make(map[pair][]int)
			daysBySymbolPair[k.symbol] = perSymbol
		}
		for i := 0; i < len(users); i++ {
			for j := i + 1; j < len(users); j++ {
				p := pair{a: users[i], b: users[j]}
				perSymbol[p] = append(perSymbol[p], k.day)
			}
		}
	}

	for _, perSymbol := range daysBySymbolPair {
		for p, days := range perSymbol {
			if LongestRun(days) >= thresholdDays {
				flagged[p.a] = struct{}{}
				flagged[p.b] = struct{}{}
			}
		}
	}
	return flagged
}

// DayOrdinal numbers the calendar day of t in loc so consecutive days differ by one.
func DayOrdinal(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// LongestRun is the length of the longest run of consecutive day numbers.
func LongestRun(days []int) int {
	if len(days) == 0 {
		return 0
	}
	uniq := append([]int(nil), days...)
	sort.Ints(uniq)
	best, cur := 1, 1
	for i := 1; i < len(uniq); i++ {
		switch uniq[i] - uniq[i-1] {
		case 0:
			continue
		case 1:
			cur++
		default:
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}
