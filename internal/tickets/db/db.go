package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
	"ms-dispatch/internal/tickets"
)

type DB struct {
	Bun bun.IDB
}

// ---------------- MANIFESTS / BUSES / ROUTES ----------------
// The sale validation chain reads all three through the same transaction so
// every check sees one consistent snapshot.

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

func (d *DB) GetRouteByID(ctx context.Context, id string) (*models.Route, error) {
	var route models.Route
	err := d.Bun.NewSelect().
		Model(&route).
		Where("route.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &route, nil
}

// UpdateOccupiedSeats is the only write path for a manifest's occupancy
// counter.
func (d *DB) UpdateOccupiedSeats(ctx context.Context, manifestID string, occupied int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Manifest)(nil)).
		Set("occupied_seats = ?", occupied).
		Where("id = ?", manifestID).
		Exec(ctx)
	return err
}

// ---------------- TICKETS ----------------

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket.ticket_number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetActiveTicketBySeat returns the active ticket holding a seat on the
// manifest, or sql.ErrNoRows if the seat is free.
func (d *DB) GetActiveTicketBySeat(ctx context.Context, manifestID string, seat int) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket.manifest_id = ?", manifestID).
		Where("ticket.seat_number = ?", seat).
		Where("ticket.state = ?", models.TicketStateActive).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicketState writes only the state column; tickets are otherwise
// immutable after sale.
func (d *DB) UpdateTicketState(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewUpdate().
		Model(ticket).
		Column("state").
		Where("id = ?", ticket.ID).
		Exec(ctx)
	return err
}

func (d *DB) CountActiveTickets(ctx context.Context, manifestID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("manifest_id = ?", manifestID).
		Where("state = ?", models.TicketStateActive).
		Count(ctx)
}

// ---------------- PASSENGERS ----------------

func (d *DB) GetPassengerByDocument(ctx context.Context, document string) (*models.Passenger, error) {
	var passenger models.Passenger
	err := d.Bun.NewSelect().
		Model(&passenger).
		Where("document_number = ?", document).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &passenger, nil
}

func (d *DB) CreatePassenger(ctx context.Context, passenger *models.Passenger) error {
	_, err := d.Bun.NewInsert().Model(passenger).Exec(ctx)
	return err
}

// InTx runs fn against transaction-scoped repositories; a returned error
// rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx tickets.DBLayer) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&DB{Bun: tx})
	})
}
