package models

import (
	"github.com/uptrace/bun"
)

// Passenger is looked up or created by document number at sale time.
type Passenger struct {
	bun.BaseModel `bun:"table:passengers"`

	ID             string `bun:"id,pk"`
	DocumentNumber string `bun:"document_number,unique,notnull"`
	DocumentType   string `bun:"document_type,notnull"`
	FullName       string `bun:"full_name,notnull"`
	Phone          string `bun:"phone,nullzero"`
}
