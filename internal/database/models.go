package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	Name      string
	CreatedAt pgtype.Timestamptz
}

type ImportRun struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	FileName        string
	DataRows        int32
	Parsed          int32
	Dropped         int32
	Inserted        int32
	MatchedAccounts int32
	Status          string
	Error           pgtype.Text
	IpAddress       pgtype.Text
	StartedAt       pgtype.Timestamptz
	FinishedAt      pgtype.Timestamptz
}
