package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/fleet"
	"ms-dispatch/internal/models"
)

type DB struct {
	Bun bun.IDB
}

// ---------------- BUSES ----------------

func (d *DB) GetBusByID(ctx context.Context, id string) (*models.Bus, error) {
	var bus models.Bus
	err := d.Bun.NewSelect().
		Model(&bus).
		Where("bus.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &bus, nil
}

// UpdateBus writes only the fields the dispatch engine owns.
func (d *DB) UpdateBus(ctx context.Context, bus *models.Bus) error {
	_, err := d.Bun.NewUpdate().
		Model(bus).
		Column("state", "assigned_driver_id").
		Where("id = ?", bus.ID).
		Exec(ctx)
	return err
}

// ---------------- DRIVERS ----------------

func (d *DB) GetDriverByID(ctx context.Context, id string) (*models.Driver, error) {
	var driver models.Driver
	err := d.Bun.NewSelect().
		Model(&driver).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (d *DB) DriverAssociated(ctx context.Context, busID, driverID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.BusDriver)(nil)).
		Where("bus_id = ?", busID).
		Where("driver_id = ?", driverID).
		Exists(ctx)
}

// ---------------- MANIFESTS ----------------

func (d *DB) CreateManifest(ctx context.Context, manifest *models.Manifest) error {
	_, err := d.Bun.NewInsert().Model(manifest).Exec(ctx)
	return err
}

func (d *DB) GetManifestByID(ctx context.Context, id string) (*models.Manifest, error) {
	var manifest models.Manifest
	err := d.Bun.NewSelect().
		Model(&manifest).
		Where("manifest.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// GetOpenManifestByBus returns the bus's manifest still in a running state.
func (d *DB) GetOpenManifestByBus(ctx context.Context, busID string) (*models.Manifest, error) {
	var manifest models.Manifest
	err := d.Bun.NewSelect().
		Model(&manifest).
		Where("manifest.bus_id = ?", busID).
		Where("manifest.state IN (?)", bun.In([]models.ManifestState{
			models.ManifestStateScheduled,
			models.ManifestStateDispatched,
			models.ManifestStateEnRoute,
		})).
		Order("manifest.scheduled_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// UpdateManifestState writes lifecycle fields only; occupied_seats belongs to
// the ticket engine.
func (d *DB) UpdateManifestState(ctx context.Context, manifest *models.Manifest) error {
	_, err := d.Bun.NewUpdate().
		Model(manifest).
		Column("state", "departed_at").
		Where("id = ?", manifest.ID).
		Exec(ctx)
	return err
}

// InTx runs fn against transaction-scoped repositories; a returned error
// rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx fleet.DBLayer) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&DB{Bun: tx})
	})
}
