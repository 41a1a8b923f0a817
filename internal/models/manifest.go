package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ManifestState string

const (
	ManifestStateScheduled  ManifestState = "SCHEDULED"
	ManifestStateDispatched ManifestState = "DISPATCHED"
	ManifestStateEnRoute    ManifestState = "EN_ROUTE"
	ManifestStateFinished   ManifestState = "FINISHED"
	ManifestStateCancelled  ManifestState = "CANCELLED"
)

// Manifest is one dispatched trip instance binding a bus, its driver(s) and a
// route. OccupiedSeats must always equal the count of active tickets that
// reference the manifest; only the ticket engine writes it.
type Manifest struct {
	bun.BaseModel `bun:"table:manifests"`

	ID                string        `bun:"id,pk"`
	ManifestNumber    string        `bun:"manifest_number,unique,notnull"`
	BusID             string        `bun:"bus_id,notnull"`
	PrimaryDriverID   string        `bun:"primary_driver_id,notnull"`
	AuxiliaryDriverID string        `bun:"auxiliary_driver_id,nullzero"`
	RouteID           string        `bun:"route_id,notnull"`
	TravelAssistant   string        `bun:"travel_assistant,nullzero"`
	ScheduledAt       time.Time     `bun:"scheduled_at,notnull"`
	DepartedAt        time.Time     `bun:"departed_at,nullzero"`
	State             ManifestState `bun:"state,notnull"`
	OccupiedSeats     int           `bun:"occupied_seats,notnull"`

	Bus   *Bus   `bun:"rel:belongs-to,join:bus_id=id"`
	Route *Route `bun:"rel:belongs-to,join:route_id=id"`
}
