// Package trigger converts a medicine's dosing configuration into abstract
// notification trigger specs, and computes concrete fire times from them.
package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency is a medicine's recurrence class.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

// RecurringPattern refines Frequency. Weekdays uses 0=Sunday..6=Saturday.
// Only the first listed weekday is honored per trigger; the rest are kept
// for display. IntervalDays present makes a custom trigger repeating.
type RecurringPattern struct {
	Weekdays     []int `json:"weekdays,omitempty"`
	DayOfMonth   int   `json:"dayOfMonth,omitempty"`
	IntervalDays int   `json:"interval,omitempty"`
}

// Spec is an abstract trigger: either a calendar recurrence (Hour/Minute
// plus optional Weekday/Day constraints) or a concrete one-shot Date.
type Spec struct {
	Hour    int        `json:"hour"`
	Minute  int        `json:"minute"`
	Weekday *int       `json:"weekday,omitempty"`
	Day     *int       `json:"day,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Repeats bool       `json:"repeats"`
}

// Build derives the trigger spec for one time slot. Pure: now only feeds the
// custom/one-shot date computation and the weekly/monthly defaults.
func Build(freq Frequency, hour, minute int, pattern *RecurringPattern, now time.Time) Spec {
	switch freq {
	case Weekly:
		weekday := int(now.Weekday())
		if pattern != nil && len(pattern.Weekdays) > 0 {
			weekday = pattern.Weekdays[0]
		}
		return Spec{Hour: hour, Minute: minute, Weekday: &weekday, Repeats: true}

	case Monthly:
		day := now.Day()
		if pattern != nil && pattern.DayOfMonth > 0 {
			day = pattern.DayOfMonth
		}
		return Spec{Hour: hour, Minute: minute, Day: &day, Repeats: true}

	case Custom:
		date := nextAt(hour, minute, now)
		repeats := pattern != nil && pattern.IntervalDays > 0
		return Spec{Hour: hour, Minute: minute, Date: &date, Repeats: repeats}

	default:
		// daily, and any unrecognized frequency falls back to the daily shape
		return Spec{Hour: hour, Minute: minute, Repeats: true}
	}
}

// OneShot builds a non-repeating trigger at an absolute instant, used for
// appointment reminders.
func OneShot(at time.Time) Spec {
	return Spec{Hour: at.Hour(), Minute: at.Minute(), Date: &at}
}

// nextAt returns today at hour:minute, rolled to tomorrow if already passed.
func nextAt(hour, minute int, now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// CronExpr renders a calendar-recurrence spec as a standard cron expression.
// Date-based specs have no cron form.
func (s Spec) CronExpr() (string, bool) {
	if s.Date != nil {
		return "", false
	}
	switch {
	case s.Weekday != nil:
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, *s.Weekday), true
	case s.Day != nil:
		return fmt.Sprintf("%d %d %d * *", s.Minute, s.Hour, *s.Day), true
	default:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), true
	}
}

// NextFire computes the next instant strictly after now at which the spec
// fires. The second return is false when the spec has no future fire (a
// one-shot whose date has passed).
func NextFire(s Spec, now time.Time) (time.Time, bool) {
	if s.Date != nil {
		if s.Date.After(now) {
			return *s.Date, true
		}
		if !s.Repeats {
			return time.Time{}, false
		}
		// Repeating date-based trigger re-arms at the same wall-clock time.
		return nextAt(s.Hour, s.Minute, now), true
	}

	expr, _ := s.CronExpr()
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, false
	}
	next := sched.Next(now)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
