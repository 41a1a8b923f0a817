package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TransferState string

const (
	TransferStatePending   TransferState = "PENDING"
	TransferStateInTransit TransferState = "IN_TRANSIT"
	TransferStateDelivered TransferState = "DELIVERED"
	TransferStateCancelled TransferState = "CANCELLED"
)

// Transfer is a cash remittance carried on a dispatched bus. Commission is
// computed at creation from the configured percentage and never recomputed.
type Transfer struct {
	bun.BaseModel `bun:"table:transfers"`

	ID                string        `bun:"id,pk"`
	TransferNumber    string        `bun:"transfer_number,unique,notnull"`
	SenderDocument    string        `bun:"sender_document,notnull"`
	SenderName        string        `bun:"sender_name,notnull"`
	SenderPhone       string        `bun:"sender_phone,nullzero"`
	RecipientDocument string        `bun:"recipient_document,notnull"`
	RecipientName     string        `bun:"recipient_name,notnull"`
	RecipientPhone    string        `bun:"recipient_phone,nullzero"`
	ReceiverDocument  string        `bun:"receiver_document,nullzero"`
	ReceiverName      string        `bun:"receiver_name,nullzero"`
	Amount            int64         `bun:"amount,notnull"`
	Commission        int64         `bun:"commission,notnull"`
	TotalAmount       int64         `bun:"total_amount,notnull"`
	BusID             string        `bun:"bus_id,notnull"`
	ManifestID        string        `bun:"manifest_id,nullzero"`
	OriginID          string        `bun:"origin_id,notnull"`
	DestinationID     string        `bun:"destination_id,notnull"`
	State             TransferState `bun:"state,notnull"`
	CreatedAt         time.Time     `bun:"created_at,notnull"`
	DeliveredAt       time.Time     `bun:"delivered_at,nullzero"`
	Observations      string        `bun:"observations,nullzero"`

	Bus *Bus `bun:"rel:belongs-to,join:bus_id=id"`
}
