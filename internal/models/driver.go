package models

import (
	"github.com/uptrace/bun"
)

type Driver struct {
	bun.BaseModel `bun:"table:drivers"`

	ID             string `bun:"id,pk"`
	DocumentNumber string `bun:"document_number,unique,notnull"`
	FullName       string `bun:"full_name,notnull"`
	LicenseNumber  string `bun:"license_number,notnull"`
	Active         bool   `bun:"active,notnull"`
}

// BusDriver is the bus ⇄ driver association set. It is maintained by the
// fleet-management side; the dispatch engine only reads it for membership
// checks.
type BusDriver struct {
	bun.BaseModel `bun:"table:bus_drivers"`

	BusID    string `bun:"bus_id,pk"`
	DriverID string `bun:"driver_id,pk"`
}
