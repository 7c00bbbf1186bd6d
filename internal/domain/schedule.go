package domain

import (
	"fmt"
	"strings"
	"time"
)

// Predicate reports whether a scheduled action fires at a simulated instant.
type Predicate func(time.Time) bool

// Always fires on every tick.
func Always(time.Time) bool { return true }

// Schedule is a declarative description of when something fires. Every
// non-empty field must match; an empty Schedule fires on every minute.
// Times of day are evaluated in UTC.
type Schedule struct {
	Every       time.Duration  // cadence counted from midnight, whole minutes
	At          []string       // "15:04" times of day, any of
	Weekdays    []time.Weekday // any of
	DaysOfMonth []int          // 1..31, any of
	Between     string         // "10:00-18:30", start inclusive, end exclusive
}

// Predicate compiles the schedule.
func (s Schedule) Predicate() (Predicate, error) {
	var checks []Predicate

	if s.Every != 0 {
		if s.Every < time.Minute || s.Every%time.Minute != 0 {
			return nil, &ConfigurationError{Field: "schedule.every", Reason: fmt.Sprintf("%s is not a whole number of minutes", s.Every)}
		}
		step := int(s.Every / time.Minute)
		checks = append(checks, func(t time.Time) bool {
			return minuteOfDay(t)%step == 0
		})
	}

	if len(s.At) > 0 {
		at := make(map[int]bool, len(s.At))
		for _, v := range s.At {
			m, err := parseClock(v)
			if err != nil {
				return nil, &ConfigurationError{Field: "schedule.at", Reason: err.Error()}
			}
			at[m] = true
		}
		checks = append(checks, func(t time.Time) bool { return at[minuteOfDay(t)] })
	}

	if len(s.Weekdays) > 0 {
		days := make(map[time.Weekday]bool, len(s.Weekdays))
		for _, d := range s.Weekdays {
			days[d] = true
		}
		checks = append(checks, func(t time.Time) bool { return days[t.UTC().Weekday()] })
	}

	if len(s.DaysOfMonth) > 0 {
		days := make(map[int]bool, len(s.DaysOfMonth))
		for _, d := range s.DaysOfMonth {
			if d < 1 || d > 31 {
				return nil, &ConfigurationError{Field: "schedule.days_of_month", Reason: fmt.Sprintf("day %d out of range", d)}
			}
			days[d] = true
		}
		checks = append(checks, func(t time.Time) bool { return days[t.UTC().Day()] })
	}

	if s.Between != "" {
		from, until, ok := strings.Cut(s.Between, "-")
		if !ok {
			return nil, &ConfigurationError{Field: "schedule.between", Reason: fmt.Sprintf("%q is not HH:MM-HH:MM", s.Between)}
		}
		start, err := parseClock(from)
		if err != nil {
			return nil, &ConfigurationError{Field: "schedule.between", Reason: err.Error()}
		}
		end, err := parseClock(until)
		if err != nil {
			return nil, &ConfigurationError{Field: "schedule.between", Reason: err.Error()}
		}
		checks = append(checks, func(t time.Time) bool {
			m := minuteOfDay(t)
			if start <= end {
				return m >= start && m < end
			}
			return m >= start || m < end // wraps midnight
		})
	}

	if len(checks) == 0 {
		return Always, nil
	}
	return func(t time.Time) bool {
		for _, check := range checks {
			if !check(t) {
				return false
			}
		}
		return true
	}, nil
}

func minuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
