package data

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// ExpirePolicy configures which snapshots should be kept when applying a
// retention policy, e.g. for a "forget" operation. Each of the bucketed
// fields keeps one snapshot per calendar period, most recent first, for up
// to the given count; -1 means keep every snapshot that would fall into
// that bucket. Within* fields additionally keep every snapshot younger than
// the given duration, measured from the most recent snapshot in the list.
type ExpirePolicy struct {
	Last          int       `json:"last"`
	Hourly        int       `json:"hourly"`
	Daily         int       `json:"daily"`
	Weekly        int       `json:"weekly"`
	Monthly       int       `json:"monthly"`
	Yearly        int       `json:"yearly"`
	Within        Duration  `json:"within,omitempty"`
	WithinHourly  Duration  `json:"within_hourly,omitempty"`
	WithinDaily   Duration  `json:"within_daily,omitempty"`
	WithinWeekly  Duration  `json:"within_weekly,omitempty"`
	WithinMonthly Duration  `json:"within_monthly,omitempty"`
	WithinYearly  Duration  `json:"within_yearly,omitempty"`
	Tags          []TagList `json:"tags,omitempty"`
}

func (e ExpirePolicy) String() string {
	var parts []string
	if e.Last != 0 {
		parts = append(parts, fmt.Sprintf("last %d snapshots", e.Last))
	}
	if e.Hourly != 0 {
		parts = append(parts, fmt.Sprintf("hourly %d snapshots", e.Hourly))
	}
	if e.Daily != 0 {
		parts = append(parts, fmt.Sprintf("daily %d snapshots", e.Daily))
	}
	if e.Weekly != 0 {
		parts = append(parts, fmt.Sprintf("weekly %d snapshots", e.Weekly))
	}
	if e.Monthly != 0 {
		parts = append(parts, fmt.Sprintf("monthly %d snapshots", e.Monthly))
	}
	if e.Yearly != 0 {
		parts = append(parts, fmt.Sprintf("yearly %d snapshots", e.Yearly))
	}
	if len(parts) == 0 {
		return "empty policy"
	}
	return fmt.Sprintf("%v", parts)
}

// Empty returns true iff no policy has been configured.
func (e ExpirePolicy) Empty() bool {
	if len(e.Tags) != 0 {
		return false
	}

	empty := ExpirePolicy{Tags: e.Tags}
	return reflect.DeepEqual(e, empty)
}

// KeepReason collects, for a single kept snapshot, every rule that matched
// it (a snapshot can be kept for more than one reason at once).
type KeepReason struct {
	Snapshot *Snapshot `json:"snapshot"`
	Matches  []string  `json:"matches"`
}

// bucketKey groups a time into a calendar period: year, month, ISO week or
// day, depending on the granularity requested.
func bucketKey(t time.Time, granularity string) string {
	year, week := t.ISOWeek()
	switch granularity {
	case "hourly":
		return t.Format("2006-01-02-15")
	case "daily":
		return t.Format("2006-01-02")
	case "weekly":
		return fmt.Sprintf("%d-%02d", year, week)
	case "monthly":
		return t.Format("2006-01")
	case "yearly":
		return t.Format("2006")
	default:
		panic("unknown granularity " + granularity)
	}
}

// ApplyPolicy splits list into snapshots to keep and snapshots to remove
// according to p. list is left untouched; keep and remove are newly
// allocated and, between them, contain every element of list exactly once.
// reasons has one entry per element of keep, in the same order, recording
// every rule that caused it to be kept.
func ApplyPolicy(list Snapshots, p ExpirePolicy) (keep, remove Snapshots, reasons []KeepReason) {
	if len(list) == 0 {
		return list, remove, nil
	}

	sorted := make(Snapshots, len(list))
	copy(sorted, list)
	sort.Sort(sort.Reverse(sorted))

	if p.Empty() {
		reasons = make([]KeepReason, len(sorted))
		for i, sn := range sorted {
			reasons[i] = KeepReason{Snapshot: sn}
		}
		return sorted, remove, reasons
	}

	now := sorted[0].Time
	keepReason := make(map[*Snapshot][]string)
	kept := make(map[*Snapshot]bool)

	markKept := func(sn *Snapshot, reason string) {
		if !kept[sn] {
			kept[sn] = true
		}
		keepReason[sn] = append(keepReason[sn], reason)
	}

	for _, sn := range sorted {
		if sn.HasTagList(p.Tags) && len(p.Tags) > 0 {
			markKept(sn, "tags")
		}
	}

	withinMatches := func(d Duration, label string) {
		if d.Zero() {
			return
		}
		cutoff := now.AddDate(-d.Years, -d.Months, -d.Days).Add(-time.Duration(d.Hours) * time.Hour)
		for _, sn := range sorted {
			if !sn.Time.Before(cutoff) {
				markKept(sn, label)
			}
		}
	}
	withinMatches(p.Within, "within")

	bucketed := func(count int, granularity string, withinLimit Duration, label string) {
		if count == 0 && withinLimit.Zero() {
			return
		}

		seen := make(map[string]bool)
		for _, sn := range sorted {
			key := bucketKey(sn.Time, granularity)
			if seen[key] {
				continue
			}

			withinCutoff := !withinLimit.Zero() && !sn.Time.Before(
				now.AddDate(-withinLimit.Years, -withinLimit.Months, -withinLimit.Days).
					Add(-time.Duration(withinLimit.Hours)*time.Hour))

			if count < 0 || withinCutoff || len(seen) < count {
				seen[key] = true
				markKept(sn, label)
			}
		}
	}

	bucketed(p.Hourly, "hourly", p.WithinHourly, "hourly")
	bucketed(p.Daily, "daily", p.WithinDaily, "daily")
	bucketed(p.Weekly, "weekly", p.WithinWeekly, "weekly")
	bucketed(p.Monthly, "monthly", p.WithinMonthly, "monthly")
	bucketed(p.Yearly, "yearly", p.WithinYearly, "yearly")

	if p.Last != 0 {
		for i, sn := range sorted {
			if p.Last < 0 || i < p.Last {
				markKept(sn, "last")
			}
		}
	}

	for _, sn := range sorted {
		if kept[sn] {
			keep = append(keep, sn)
			reasons = append(reasons, KeepReason{Snapshot: sn, Matches: keepReason[sn]})
		} else {
			remove = append(remove, sn)
		}
	}

	return keep, remove, reasons
}
