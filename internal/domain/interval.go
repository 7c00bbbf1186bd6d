package domain

import (
	"fmt"
	"time"
)

// Interval is a closed simulated time range [From, To].
type Interval struct {
	From time.Time
	To   time.Time
}

func (iv Interval) Validate() error {
	if iv.From.IsZero() || iv.To.IsZero() {
		return &ConfigurationError{Field: "interval", Reason: "from and to are required"}
	}
	if iv.From.After(iv.To) {
		return &ConfigurationError{
			Field:  "interval",
			Reason: fmt.Sprintf("from %s is after to %s", iv.From.Format(time.RFC3339), iv.To.Format(time.RFC3339)),
		}
	}
	return nil
}

func (iv Interval) Duration() time.Duration { return iv.To.Sub(iv.From) }

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.From) && !t.After(iv.To)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s..%s", iv.From.Format(time.RFC3339), iv.To.Format(time.RFC3339))
}
