package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Device is a registered point-of-sale terminal bound to one municipality.
type Device struct {
	bun.BaseModel `bun:"table:devices"`

	ID             string    `bun:"id,pk"`
	Code           string    `bun:"code,unique,notnull"`
	MunicipalityID string    `bun:"municipality_id,notnull"`
	Active         bool      `bun:"active,notnull"`
	LastSeenAt     time.Time `bun:"last_seen_at,nullzero"`

	Municipality *Municipality `bun:"rel:belongs-to,join:municipality_id=id"`
}
