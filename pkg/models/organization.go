package models

import "time"

// Organization is a tenant. Timezone drives effective-time normalization for
// backdated status changes entered as bare dates.
type Organization struct {
	ID        string    `json:"id"       validate:"required"`
	Name      string    `json:"name"     validate:"required,min=2"`
	Timezone  string    `json:"timezone" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// Location resolves the organization timezone, falling back to UTC when the
// stored name is unknown.
func (o *Organization) Location() *time.Location {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
