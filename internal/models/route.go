package models

import (
	"github.com/uptrace/bun"
)

// Route carries a fixed fare: a ticket's paid amount must match FareAmount
// exactly, no partial payment or surcharge at this layer.
type Route struct {
	bun.BaseModel `bun:"table:routes"`

	ID                   string `bun:"id,pk"`
	OriginID             string `bun:"origin_id,notnull"`
	DestinationID        string `bun:"destination_id,notnull"`
	FareAmount           int64  `bun:"fare_amount,notnull"`
	DistanceKm           int    `bun:"distance_km"`
	EstimatedDurationMin int    `bun:"estimated_duration_min"`
	Active               bool   `bun:"active,notnull"`

	Origin      *Municipality `bun:"rel:belongs-to,join:origin_id=id"`
	Destination *Municipality `bun:"rel:belongs-to,join:destination_id=id"`
}
