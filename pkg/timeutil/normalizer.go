// Package timeutil normalizes caller-supplied effective times into canonical
// UTC timestamps under an organization's timezone rules.
package timeutil

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFutureTimestamp indicates an effective time beyond the allowed
	// clock-skew window.
	ErrFutureTimestamp = errors.New("effective time is in the future")

	// ErrBeforeEntityCreation indicates an effective time earlier than the
	// entity's creation.
	ErrBeforeEntityCreation = errors.New("effective time precedes entity creation")
)

const (
	// futureSkew tolerates small clock differences between callers and the
	// server.
	futureSkew = 5 * time.Second

	// BackdateThreshold is how far behind now an effective time must be to
	// count as backdated.
	BackdateThreshold = time.Second
)

// Normalizer converts caller-supplied instants into canonical UTC timestamps
// for one organization.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}

	return &Normalizer{loc: loc, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now

	return n
}

// Normalize resolves an effective timestamp:
//   - nil → now
//   - dateOnly and the date is today (org-local) → now
//   - dateOnly and the date is in the past → noon org-local, converted to UTC
//   - an explicit time-of-day → used as given, converted to UTC
//
// Timestamps beyond the skew window in the future, or earlier than the
// entity's creation, are rejected.
func (n *Normalizer) Normalize(at *time.Time, dateOnly bool, createdAt time.Time) (time.Time, error) {
	now := n.now().UTC()

	if at == nil {
		return now, nil
	}

	effective := at.UTC()

	if dateOnly {
		// The calendar date is taken exactly as supplied. Converting into the
		// org zone first would shift a midnight-UTC date to the previous day
		// for zones west of UTC.
		y, m, d := at.Date()
		ny, nm, nd := now.In(n.loc).Date()

		if y == ny && m == nm && d == nd {
			return now, nil
		}

		effective = time.Date(y, m, d, 12, 0, 0, 0, n.loc).UTC()
	}

	if effective.After(now.Add(futureSkew)) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFutureTimestamp, effective.Format(time.RFC3339))
	}

	if effective.Before(createdAt.UTC()) {
		return time.Time{}, fmt.Errorf("%w: %s is before %s",
			ErrBeforeEntityCreation, effective.Format(time.RFC3339), createdAt.UTC().Format(time.RFC3339))
	}

	return effective, nil
}

// IsBackdated reports whether an effective time is far enough behind now to
// be treated as a backdated change.
func IsBackdated(effective, now time.Time) bool {
	return now.Sub(effective) > BackdateThreshold
}
