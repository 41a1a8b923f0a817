package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketState string

const (
	TicketStateActive    TicketState = "ACTIVE"
	TicketStateUsed      TicketState = "USED"
	TicketStateCancelled TicketState = "CANCELLED"
	TicketStateRefunded  TicketState = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentQR       PaymentMethod = "QR"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string        `bun:"id,pk"`
	TicketNumber  string        `bun:"ticket_number,unique,notnull"`
	ManifestID    string        `bun:"manifest_id,notnull"`
	PassengerID   string        `bun:"passenger_id,notnull"`
	RouteID       string        `bun:"route_id,notnull"`
	SeatNumber    int           `bun:"seat_number,nullzero"`
	AmountPaid    int64         `bun:"amount_paid,notnull"`
	PaymentMethod PaymentMethod `bun:"payment_method,notnull"`
	State         TicketState   `bun:"state,notnull"`
	SellerUserID  string        `bun:"seller_user_id,notnull"`
	DeviceID      string        `bun:"device_id,notnull"`
	BoardingQR    []byte        `bun:"boarding_qr"`
	SoldAt        time.Time     `bun:"sold_at,notnull"`
	Observations  string        `bun:"observations,nullzero"`

	Manifest  *Manifest  `bun:"rel:belongs-to,join:manifest_id=id"`
	Passenger *Passenger `bun:"rel:belongs-to,join:passenger_id=id"`
	Route     *Route     `bun:"rel:belongs-to,join:route_id=id"`
}

// Terminal reports whether the ticket can no longer transition.
func (t *Ticket) Terminal() bool {
	return t.State != TicketStateActive
}
