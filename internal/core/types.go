// Package core provides the business logic for maintenance-record imports and
// expiration reporting. This package has no UI dependencies and can be used by
// any frontend.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductType classifies a maintenance record. It is always derived from the
// product name, never read from the input.
type ProductType string

const (
	ProductSoftware ProductType = "software"
	ProductHardware ProductType = "hardware"
)

// Status is the lifecycle state of a persisted maintenance record.
type Status string

// StatusActive is the only status produced by the importer.
const StatusActive Status = "active"

// MaintenanceCandidate is a normalized row produced by the parser, before the
// caller attaches ownership and persists it.
type MaintenanceCandidate struct {
	ProductName   string      `json:"product_name"`
	ProductType   ProductType `json:"product_type"`
	VendorName    *string     `json:"vendor_name,omitempty"`
	PurchaseDate  *string     `json:"purchase_date,omitempty"` // YYYY-MM-DD
	StartDate     *string     `json:"start_date,omitempty"`
	EndDate       *string     `json:"end_date,omitempty"`
	Cost          *float64    `json:"cost,omitempty"`
	Income        *float64    `json:"income,omitempty"`
	Profit        *float64    `json:"profit,omitempty"`
	MarginPercent *float64    `json:"margin_percent,omitempty"`
	SerialNumber  *string     `json:"serial_number,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
	Status        Status      `json:"status"`
}

// NewMaintenanceRecord is a candidate with the caller-attached fields needed
// for insertion.
type NewMaintenanceRecord struct {
	MaintenanceCandidate
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	AccountID           *uuid.UUID `json:"account_id,omitempty"`
	RenewalReminderDays int        `json:"renewal_reminder_days"`
}

// MaintenanceRecord is a persisted maintenance record as read back for reporting.
type MaintenanceRecord struct {
	ID                  uuid.UUID   `json:"id"`
	UserID              uuid.UUID   `json:"user_id"`
	AccountID           *uuid.UUID  `json:"account_id,omitempty"`
	AccountName         *string     `json:"account_name,omitempty"`
	ProductName         string      `json:"product_name"`
	ProductType         ProductType `json:"product_type"`
	VendorName          *string     `json:"vendor_name,omitempty"`
	SerialNumber        *string     `json:"serial_number,omitempty"`
	EndDate             *time.Time  `json:"end_date,omitempty"`
	Cost                *float64    `json:"cost,omitempty"`
	Status              Status      `json:"status"`
	RenewalReminderDays int         `json:"renewal_reminder_days"`
}

// Account is one entry of the account directory used for vendor resolution.
type Account struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ImportRunStatus is the outcome of one import operation.
type ImportRunStatus string

const (
	RunCompleted ImportRunStatus = "completed"
	RunNoRows    ImportRunStatus = "no_rows"
	RunPartial   ImportRunStatus = "partial"
	RunFailed    ImportRunStatus = "failed"
)

// ImportRun is the history entry written for every import.
type ImportRun struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	FileName       string          `json:"file_name"`
	DataRows       int             `json:"data_rows"`
	Parsed         int             `json:"parsed"`
	Dropped        int             `json:"dropped"`
	Inserted       int             `json:"inserted"`
	MatchedAccount int             `json:"matched_accounts"`
	Status         ImportRunStatus `json:"status"`
	Error          string          `json:"error,omitempty"`
	IPAddress      string          `json:"ip_address,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// AccountResolver supplies the account directory for a user.
type AccountResolver interface {
	AccountDirectory(ctx context.Context, userID uuid.UUID) ([]Account, error)
}

// Persistence stores one chunk of records. Implementations must insert the
// whole chunk or nothing.
type Persistence interface {
	InsertMaintenanceRecords(ctx context.Context, records []NewMaintenanceRecord) error
}

// RecordSource returns a user's active records that have an end date.
type RecordSource interface {
	ActiveMaintenanceRecords(ctx context.Context, userID uuid.UUID) ([]MaintenanceRecord, error)
}

// ReminderSource returns active records of all users that may be inside their
// renewal reminder window at asOf.
type ReminderSource interface {
	MaintenanceDueForReminder(ctx context.Context, asOf time.Time) ([]MaintenanceRecord, error)
}

// RunRecorder persists and lists import history.
type RunRecorder interface {
	RecordImportRun(ctx context.Context, run ImportRun) error
	ImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]ImportRun, error)
}

// Store is the full backend a Service needs.
type Store interface {
	AccountResolver
	Persistence
	RecordSource
	ReminderSource
	RunRecorder
}
