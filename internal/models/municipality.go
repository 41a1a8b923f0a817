package models

import (
	"github.com/uptrace/bun"
)

// Municipality is immutable reference data; the core only reads it.
type Municipality struct {
	bun.BaseModel `bun:"table:municipalities"`

	ID         string `bun:"id,pk"`
	Name       string `bun:"name,notnull"`
	Department string `bun:"department,notnull"`
	Active     bool   `bun:"active,notnull"`
}
