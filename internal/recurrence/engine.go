package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// MaxOccurrences caps a single expansion regardless of the horizon.
const MaxOccurrences = 100

// DefaultHorizonYears bounds rules that carry no end date.
const DefaultHorizonYears = 2

// Pattern enumerates the supported recurrence steps.
type Pattern int

const (
	// PatternUnspecified indicates the rule pattern is not set.
	PatternUnspecified Pattern = iota
	// PatternDaily steps one calendar day.
	PatternDaily
	// PatternWeekly steps seven calendar days.
	PatternWeekly
	// PatternMonthly steps one calendar month, clamping the day of month.
	PatternMonthly
	// PatternYearly steps one calendar year, clamping Feb 29.
	PatternYearly
	// PatternEveryNDays steps Interval calendar days.
	PatternEveryNDays
	// PatternEveryNWeeks steps Interval weeks.
	PatternEveryNWeeks
)

var patternTags = map[Pattern]string{
	PatternDaily:       "DAILY",
	PatternWeekly:      "WEEKLY",
	PatternMonthly:     "MONTHLY",
	PatternYearly:      "YEARLY",
	PatternEveryNDays:  "EVERY_N_DAYS",
	PatternEveryNWeeks: "EVERY_N_WEEKS",
}

var patternNames = map[Pattern]string{
	PatternDaily:       "Daily",
	PatternWeekly:      "Weekly",
	PatternMonthly:     "Monthly",
	PatternYearly:      "Yearly",
	PatternEveryNDays:  "Every N Days",
	PatternEveryNWeeks: "Every N Weeks",
}

// ErrInvalidPattern indicates the recurrence pattern tag is not supported.
var ErrInvalidPattern = errors.New("recurrence: invalid pattern")

// ParsePattern resolves a wire tag such as "MONTHLY" or "every_n_days".
func ParsePattern(tag string) (Pattern, error) {
	normalized := strings.ToUpper(strings.TrimSpace(tag))
	for pattern, candidate := range patternTags {
		if candidate == normalized {
			return pattern, nil
		}
	}
	return PatternUnspecified, fmt.Errorf("%w: %q", ErrInvalidPattern, tag)
}

// String renders the wire tag of the pattern.
func (p Pattern) String() string {
	if tag, ok := patternTags[p]; ok {
		return tag
	}
	return "UNSPECIFIED"
}

// DisplayName renders a human readable label.
func (p Pattern) DisplayName() string {
	return patternNames[p]
}

// Valid reports whether p is one of the supported patterns.
func (p Pattern) Valid() bool {
	_, ok := patternTags[p]
	return ok
}

// Rule describes how a master record repeats.
//
// Interval is only consulted by the EVERY_N_* patterns; the fixed patterns
// always step one unit of their granularity.
type Rule struct {
	Pattern  Pattern
	Interval int
	EndDate  *time.Time
}

// Validate reports a malformed rule.
func (r Rule) Validate() error {
	if !r.Pattern.Valid() {
		return ErrInvalidPattern
	}
	return nil
}

// Step returns the effective number of units advanced per occurrence.
func (r Rule) Step() int {
	switch r.Pattern {
	case PatternEveryNDays, PatternEveryNWeeks:
		if r.Interval <= 0 {
			return 1
		}
		return r.Interval
	default:
		return 1
	}
}

// Next applies a single step of the rule to t.
func Next(t time.Time, rule Rule) (time.Time, error) {
	switch rule.Pattern {
	case PatternDaily:
		return addDays(t, 1), nil
	case PatternWeekly:
		return addDays(t, 7), nil
	case PatternMonthly:
		return addMonths(t, 1), nil
	case PatternYearly:
		return addMonths(t, 12), nil
	case PatternEveryNDays:
		return addDays(t, rule.Step()), nil
	case PatternEveryNWeeks:
		return addDays(t, 7*rule.Step()), nil
	case PatternUnspecified:
		fallthrough
	default:
		return time.Time{}, ErrInvalidPattern
	}
}

// Horizon returns the exclusive end bound of an expansion.
func Horizon(rule Rule, anchor time.Time) time.Time {
	if rule.EndDate != nil {
		return *rule.EndDate
	}
	return addMonths(anchor, 12*DefaultHorizonYears)
}

// Expand lazily yields the occurrences that follow anchor.
//
// The anchor itself is never yielded. Each occurrence is derived from the
// previous one, values are strictly increasing, the first value that is not
// before the horizon stops the sequence, and at most MaxOccurrences values
// are produced. An invalid rule yields nothing; call Rule.Validate first.
func Expand(rule Rule, anchor time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if rule.Validate() != nil {
			return
		}
		end := Horizon(rule, anchor)
		current := anchor
		for produced := 0; produced < MaxOccurrences && current.Before(end); produced++ {
			next, err := Next(current, rule)
			if err != nil || !next.Before(end) {
				return
			}
			if !yield(next) {
				return
			}
			current = next
		}
	}
}

// Occurrences collects Expand into a slice.
func Occurrences(rule Rule, anchor time.Time) []time.Time {
	return slices.Collect(Expand(rule, anchor))
}

func addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addMonths moves t by months and clamps the day to the target month's
// length, so Jan 31 + 1 month lands on the last day of February.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	ty, tm, _ := first.Date()
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
