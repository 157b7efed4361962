package core

import "time"

// Matcher decides, for one repeat type, whether a task whose bounds have
// already been checked falls on the query date. Both dates are normalized.
type Matcher interface {
	Matches(anchor, query Date) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(anchor, query Date) bool

func (f MatcherFunc) Matches(anchor, query Date) bool { return f(anchor, query) }

// repeatMatchers maps repeat types to their matching rule. It is never
// written after init, so concurrent lookups are safe.
var repeatMatchers = map[RepeatType]Matcher{
	RepeatNone: MatcherFunc(func(anchor, query Date) bool {
		return query.Equal(anchor)
	}),
	RepeatDaily: MatcherFunc(func(_, _ Date) bool {
		return true
	}),
	RepeatWeekly: MatcherFunc(func(anchor, query Date) bool {
		return DaysBetween(anchor, query)%7 == 0
	}),
	// Months without the anchor's day are skipped, not clamped to month end:
	// an anchor on the 31st never occurs in a 30-day month.
	RepeatMonthly: MatcherFunc(func(anchor, query Date) bool {
		return query.Day() == anchor.Day()
	}),
	// A Feb 29 anchor only occurs in leap years.
	RepeatYearly: MatcherFunc(func(anchor, query Date) bool {
		return query.Day() == anchor.Day() && query.Month() == anchor.Month()
	}),
}

// OccursOn reports whether task is active on the calendar day of query.
//
// Time of day is ignored on both the query and the task date. A task never
// occurs before its anchor, nor after the end of its RepeatUntil day. Unknown
// repeat types never occur.
func OccursOn(task Task, query time.Time) bool {
	return OccursOnDate(task, DateOf(query))
}

// OccursOnDate is OccursOn for an already normalized date.
func OccursOnDate(task Task, day Date) bool {
	matcher, ok := repeatMatchers[task.Repeat]
	if !ok {
		return false
	}
	anchor := DateOf(task.Anchor.Time)
	if day.Before(anchor) {
		return false
	}
	if until := task.EffectiveUntil(); until != nil && day.Time.After(DateOf(until.Time).EndOfDay()) {
		return false
	}
	return matcher.Matches(anchor, day)
}

// Occurrences lists the days in [from, to] on which task occurs.
func Occurrences(task Task, from, to Date) []Date {
	var out []Date
	for d := DateOf(from.Time); !d.After(to); d = d.AddDays(1) {
		if OccursOnDate(task, d) {
			out = append(out, d)
		}
	}
	return out
}
