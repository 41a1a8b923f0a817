package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
	"ms-dispatch/internal/transfers"
)

type DB struct {
	Bun bun.IDB
}

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

func (d *DB) GetOpenManifestByBus(ctx context.Context, busID string) (*models.Manifest, error) {
	var manifest models.Manifest
	err := d.Bun.NewSelect().
		Model(&manifest).
		Where("manifest.bus_id = ?", busID).
		Where("manifest.state IN (?)", bun.In([]models.ManifestState{
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

func (d *DB) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	_, err := d.Bun.NewInsert().Model(transfer).Exec(ctx)
	return err
}

func (d *DB) GetTransferByID(ctx context.Context, id string) (*models.Transfer, error) {
	var transfer models.Transfer
	err := d.Bun.NewSelect().
		Model(&transfer).
		Where("transfer.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// UpdateTransfer writes the mutable delivery fields only; amounts are frozen
// at creation.
func (d *DB) UpdateTransfer(ctx context.Context, transfer *models.Transfer) error {
	_, err := d.Bun.NewUpdate().
		Model(transfer).
		Column("state", "receiver_document", "receiver_name", "delivered_at").
		Where("id = ?", transfer.ID).
		Exec(ctx)
	return err
}

// InTx runs fn against transaction-scoped repositories; a returned error
// rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx transfers.DBLayer) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&DB{Bun: tx})
	})
}
