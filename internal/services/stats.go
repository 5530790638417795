package services

import (
	"sort"

	"andvaranaut/internal/core"
)

type (
	// CommuteStats holds per-month commute aggregates. Only months with at
	// least one qualifying commute day appear as keys.
	CommuteStats struct {
		Counts     map[core.MonthKey]int
		WalkCounts map[core.MonthKey]int
		Costs      map[core.MonthKey]int
	}

	// GeekSeekTotal is the per-month geek-seek visit count and spend.
	GeekSeekTotal struct {
		Times   int
		Amounts int
	}
)

// ComputeCommuteStats folds a day sequence into monthly commute counts, walk
// counts and costs. Days without a date or without a commute event are
// skipped, never zero-filled. A nil transit information means the fare data
// has not loaded yet and yields empty maps rather than zero-priced costs.
// The fold is idempotent and independent of the day ordering.
func ComputeCommuteStats(days []core.DayRecord, transit *core.TransitInformation, rule FareRule) CommuteStats {
	stats := CommuteStats{
		Counts:     map[core.MonthKey]int{},
		WalkCounts: map[core.MonthKey]int{},
		Costs:      map[core.MonthKey]int{},
	}
	if transit == nil {
		return stats
	}
	if rule == nil {
		rule = LegFareRule{}
	}

	for _, day := range days {
		if day.IsPadding() {
			continue
		}
		commute, ok := day.FindEvent(core.Commute)
		if !ok {
			continue
		}
		var walks []core.Event
		for _, e := range day.Events {
			if e.Type == core.Walking {
				walks = append(walks, e)
			}
		}

		key := core.MonthKeyOf(day.Date)
		stats.Counts[key]++
		stats.WalkCounts[key] += len(walks)
		stats.Costs[key] += rule.DayCost(commute, walks, transit.UnitPrice)
	}
	return stats
}

// ComputeGeekSeekStats folds per-month geek-seek visit counts and amount sums.
// Months without a geek-seek visit never appear as keys.
func ComputeGeekSeekStats(days []core.DayRecord) map[core.MonthKey]GeekSeekTotal {
	totals := map[core.MonthKey]GeekSeekTotal{}
	for _, day := range days {
		if day.IsPadding() {
			continue
		}
		times := 0
		amounts := 0
		for _, e := range day.Events {
			if e.Type != core.GeekSeek {
				continue
			}
			times++
			amounts += e.Amounts
		}
		if times == 0 {
			continue
		}
		key := core.MonthKeyOf(day.Date)
		total := totals[key]
		total.Times += times
		total.Amounts += amounts
		totals[key] = total
	}
	return totals
}

// TotalCostFrom sums the monthly costs at or after the given month, the
// "current month onward" display cut the calendar page applies.
func (s CommuteStats) TotalCostFrom(from core.MonthKey) int {
	total := 0
	for key, cost := range s.Costs {
		if !key.Before(from) {
			total += cost
		}
	}
	return total
}

// MonthsFrom returns the sorted month keys at or after from that carry at
// least one commute day.
func (s CommuteStats) MonthsFrom(from core.MonthKey) []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(s.Counts))
	for key := range s.Counts {
		if !key.Before(from) {
			keys = append(keys, key)
		}
	}
	sortMonthKeys(keys)
	return keys
}

// TotalGeekSeekFrom sums geek-seek amounts at or after the given month.
func TotalGeekSeekFrom(totals map[core.MonthKey]GeekSeekTotal, from core.MonthKey) int {
	sum := 0
	for key, total := range totals {
		if !key.Before(from) {
			sum += total.Amounts
		}
	}
	return sum
}

func sortMonthKeys(keys []core.MonthKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
}
