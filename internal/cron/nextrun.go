package cron

import (
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// maxYearHops bounds how many times nextCronTick re-queries gronx while
// skipping candidate ticks that fall in a year the year field excludes.
// A once-a-second cron restricted to a single future year would
// otherwise spin indefinitely if that year is wrong or unreachable.
const maxYearHops = 200

// splitSevenField separates a 7-field "sec min hour dom month dow year"
// expression into the 6-field prefix gronx understands and the
// trailing year selector.
func splitSevenField(expr string) (sixField, year string, ok bool) {
	fields := strings.Fields(expr)
	if len(fields) != 7 {
		return "", "", false
	}
	return strings.Join(fields[:6], " "), fields[6], true
}

// yearMatches reports whether year (a 4-digit calendar year) satisfies
// selector, which is "*" (any year), a single year, or a comma-separated
// list of years.
func yearMatches(selector string, year int) bool {
	if selector == "*" {
		return true
	}
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n == year {
			return true
		}
	}
	return false
}

// ComputeNextRun returns the next instant that schedule fires: for a
// one-shot, AtMs if it is at or after `after` (nil if AtMs has already
// elapsed); for every and cron schedules, the first tick strictly
// after `after`. Returns an InvalidCronExpression error if
// schedule.Kind is ScheduleCron and Expr doesn't parse.
func ComputeNextRun(schedule CronSchedule, after time.Time) (*time.Time, error) {
	switch schedule.Kind {
	case ScheduleAt:
		t := time.UnixMilli(schedule.AtMs).UTC()
		if t.Before(after) {
			return nil, nil
		}
		return &t, nil

	case ScheduleEvery:
		if schedule.EveryMs <= 0 {
			return nil, invalidExprErr("every_ms must be positive")
		}
		next := after.Add(time.Duration(schedule.EveryMs) * time.Millisecond)
		return &next, nil

	case ScheduleCron:
		return nextCronTick(schedule.Expr, after)

	default:
		return nil, invalidExprErr("unknown schedule kind")
	}
}

// ValidateExpr reports whether expr is a well-formed 7-field cron
// expression without computing a next run time.
func ValidateExpr(expr string) error {
	_, err := nextCronTick(expr, time.Now().UTC())
	return err
}

func nextCronTick(expr string, after time.Time) (*time.Time, error) {
	sixField, yearSel, ok := splitSevenField(expr)
	if !ok {
		return nil, invalidExprErr(expr)
	}

	gron := gronx.New()
	if !gron.IsValid(sixField) {
		return nil, invalidExprErr(expr)
	}

	cursor := after
	for i := 0; i < maxYearHops; i++ {
		next, err := gronx.NextTickAfter(sixField, cursor, false)
		if err != nil {
			return nil, invalidExprErr(err.Error())
		}
		if yearMatches(yearSel, next.Year()) {
			return &next, nil
		}
		// Jump past this candidate's year entirely rather than
		// re-checking every tick within it.
		cursor = time.Date(next.Year()+1, 1, 1, 0, 0, 0, 0, next.Location())
	}
	return nil, invalidExprErr("no matching year found for " + expr)
}
