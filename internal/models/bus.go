package models

import (
	"github.com/uptrace/bun"
)

type BusState string

const (
	BusStateAvailable   BusState = "AVAILABLE"
	BusStateDispatched  BusState = "DISPATCHED"
	BusStateEnRoute     BusState = "EN_ROUTE"
	BusStateArrived     BusState = "ARRIVED"
	BusStateMaintenance BusState = "MAINTENANCE"
	BusStateInactive    BusState = "INACTIVE"
)

type Bus struct {
	bun.BaseModel `bun:"table:buses"`

	ID               string   `bun:"id,pk"`
	Plate            string   `bun:"plate,unique,notnull"`
	Capacity         int      `bun:"capacity,notnull"`
	State            BusState `bun:"state,notnull"`
	AssignedDriverID string   `bun:"assigned_driver_id,nullzero"`

	AssignedDriver *Driver `bun:"rel:belongs-to,join:assigned_driver_id=id"`
}

// Dispatchable reports whether the bus can start a new manifest.
func (b *Bus) Dispatchable() bool {
	return b.State == BusStateAvailable || b.State == BusStateArrived
}
