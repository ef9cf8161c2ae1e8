package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/core"
)

const isoDate = "2006-01-02"

type accountDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

type maintenanceDoc struct {
	ID                  string     `bson:"_id"`
	UserID              string     `bson:"user_id"`
	AccountID           *string    `bson:"account_id,omitempty"`
	ProductName         string     `bson:"product_name"`
	ProductType         string     `bson:"product_type"`
	VendorName          *string    `bson:"vendor_name,omitempty"`
	PurchaseDate        *time.Time `bson:"purchase_date,omitempty"`
	StartDate           *time.Time `bson:"start_date,omitempty"`
	EndDate             *time.Time `bson:"end_date"`
	Cost                *float64   `bson:"cost,omitempty"`
	Income              *float64   `bson:"income,omitempty"`
	Profit              *float64   `bson:"profit,omitempty"`
	MarginPercent       *float64   `bson:"margin_percent,omitempty"`
	SerialNumber        *string    `bson:"serial_number,omitempty"`
	Notes               *string    `bson:"notes,omitempty"`
	Status              string     `bson:"status"`
	RenewalReminderDays int        `bson:"renewal_reminder_days"`
	CreatedAt           time.Time  `bson:"created_at"`
}

func newMaintenanceDoc(r core.NewMaintenanceRecord) maintenanceDoc {
	status := r.Status
	if status == "" {
		status = core.StatusActive
	}
	d := maintenanceDoc{
		ID:                  r.ID.String(),
		UserID:              r.UserID.String(),
		ProductName:         r.ProductName,
		ProductType:         string(r.ProductType),
		VendorName:          r.VendorName,
		PurchaseDate:        parseDay(r.PurchaseDate),
		StartDate:           parseDay(r.StartDate),
		EndDate:             parseDay(r.EndDate),
		Cost:                r.Cost,
		Income:              r.Income,
		Profit:              r.Profit,
		MarginPercent:       r.MarginPercent,
		SerialNumber:        r.SerialNumber,
		Notes:               r.Notes,
		Status:              string(status),
		RenewalReminderDays: r.RenewalReminderDays,
		CreatedAt:           time.Now().UTC(),
	}
	if r.AccountID != nil {
		id := r.AccountID.String()
		d.AccountID = &id
	}
	return d
}

// record converts a document back. It reports false for a malformed id.
func (d maintenanceDoc) record() (core.MaintenanceRecord, bool) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return core.MaintenanceRecord{}, false
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return core.MaintenanceRecord{}, false
	}

	rec := core.MaintenanceRecord{
		ID:                  id,
		UserID:              userID,
		ProductName:         d.ProductName,
		ProductType:         core.ProductType(d.ProductType),
		VendorName:          d.VendorName,
		SerialNumber:        d.SerialNumber,
		Cost:                d.Cost,
		Status:              core.Status(d.Status),
		RenewalReminderDays: d.RenewalReminderDays,
	}
	if d.EndDate != nil {
		end := utcDay(*d.EndDate)
		rec.EndDate = &end
	}
	if d.AccountID != nil {
		if accountID, err := uuid.Parse(*d.AccountID); err == nil {
			rec.AccountID = &accountID
		}
	}
	return rec, true
}

type importRunDoc struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"user_id"`
	FileName        string    `bson:"file_name"`
	DataRows        int       `bson:"data_rows"`
	Parsed          int       `bson:"parsed"`
	Dropped         int       `bson:"dropped"`
	Inserted        int       `bson:"inserted"`
	MatchedAccounts int       `bson:"matched_accounts"`
	Status          string    `bson:"status"`
	Error           string    `bson:"error,omitempty"`
	IPAddress       string    `bson:"ip_address,omitempty"`
	StartedAt       time.Time `bson:"started_at"`
	FinishedAt      time.Time `bson:"finished_at"`
}

func newImportRunDoc(r core.ImportRun) importRunDoc {
	return importRunDoc{
		ID:              r.ID.String(),
		UserID:          r.UserID.String(),
		FileName:        r.FileName,
		DataRows:        r.DataRows,
		Parsed:          r.Parsed,
		Dropped:         r.Dropped,
		Inserted:        r.Inserted,
		MatchedAccounts: r.MatchedAccount,
		Status:          string(r.Status),
		Error:           r.Error,
		IPAddress:       r.IPAddress,
		StartedAt:       r.StartedAt.UTC(),
		FinishedAt:      r.FinishedAt.UTC(),
	}
}

func (d importRunDoc) run() core.ImportRun {
	id, _ := uuid.Parse(d.ID)
	userID, _ := uuid.Parse(d.UserID)
	return core.ImportRun{
		ID:             id,
		UserID:         userID,
		FileName:       d.FileName,
		DataRows:       d.DataRows,
		Parsed:         d.Parsed,
		Dropped:        d.Dropped,
		Inserted:       d.Inserted,
		MatchedAccount: d.MatchedAccounts,
		Status:         core.ImportRunStatus(d.Status),
		Error:          d.Error,
		IPAddress:      d.IPAddress,
		StartedAt:      d.StartedAt,
		FinishedAt:     d.FinishedAt,
	}
}

// parseDay reads a normalized YYYY-MM-DD date.
func parseDay(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(isoDate, *s)
	if err != nil {
		return nil
	}
	return &t
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
