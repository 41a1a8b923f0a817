package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session records one device login. At most one active session may exist per
// user; the session manager enforces that on login.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id,notnull"`
	DeviceID     string    `bun:"device_id,notnull"`
	Token        string    `bun:"token,unique,notnull"`
	Active       bool      `bun:"active,notnull"`
	StartedAt    time.Time `bun:"started_at,notnull"`
	LastActivity time.Time `bun:"last_activity,notnull"`
	EndedAt      time.Time `bun:"ended_at,nullzero"`
}

// SessionContext is what every gated operation receives after token
// validation.
type SessionContext struct {
	SessionID      string          `json:"session_id"`
	UserID         string          `json:"user_id"`
	DeviceID       string          `json:"device_id"`
	MunicipalityID string          `json:"municipality_id"`
	Affiliation    AffiliationType `json:"affiliation"`
}
