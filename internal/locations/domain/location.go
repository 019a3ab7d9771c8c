package locations

import "errors"

// Status is the lifecycle state of a production location.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Location is a solar production site. This core only reads locations; their
// lifecycle is owned elsewhere.
type Location struct {
	ID         string  `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	Latitude   float64 `db:"latitude" json:"latitude"`
	Longitude  float64 `db:"longitude" json:"longitude"`
	CapacityMW float64 `db:"capacity_mw" json:"capacityMw"`
	Status     Status  `db:"status" json:"status"`
}

// IsActive tells whether the location accepts ingestion and queries.
func (l Location) IsActive() bool { return l.Status == StatusActive }

var (
	ErrLocationNotFound = errors.New("locations: not found")
	ErrLocationInactive = errors.New("locations: not active")
)
