package models

import (
	"github.com/uptrace/bun"
)

type AffiliationType string

const (
	AffiliationEmployee   AffiliationType = "EMPLOYEE"
	AffiliationConcession AffiliationType = "CONCESSION"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID             string          `bun:"id,pk"`
	DocumentNumber string          `bun:"document_number,unique,notnull"`
	FullName       string          `bun:"full_name,notnull"`
	Email          string          `bun:"email,unique,notnull"`
	PasswordHash   string          `bun:"password_hash,notnull"`
	MunicipalityID string          `bun:"municipality_id,notnull"`
	Affiliation    AffiliationType `bun:"affiliation,notnull"`
	Active         bool            `bun:"active,notnull"`

	Municipality *Municipality `bun:"rel:belongs-to,join:municipality_id=id"`
}
