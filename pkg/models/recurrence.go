package models

import (
	"time"

	"github.com/robfig/cron/v3"
)

// recurrenceParser accepts the standard 5-field cron format
// (minute hour day month weekday).
var recurrenceParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateRecurrence checks a workflow recurrence expression.
func ValidateRecurrence(expr string) error {
	_, err := recurrenceParser.Parse(expr)

	return err
}

// NextRecurrence computes the next fire time of a recurrence expression
// strictly after the reference time.
func NextRecurrence(expr string, after time.Time) (time.Time, error) {
	schedule, err := recurrenceParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(after), nil
}
