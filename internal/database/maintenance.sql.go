package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const listAccounts = `-- name: ListAccounts :many
SELECT id, user_id, name, created_at
FROM accounts
WHERE user_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListAccounts(ctx context.Context, userID pgtype.UUID) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Name,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertAccount = `-- name: InsertAccount :execrows
INSERT INTO accounts (id, user_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
WHERE accounts.user_id = EXCLUDED.user_id
`

type InsertAccountParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
	Name   string
}

// InsertAccount returns 0 rows when the id belongs to another user.
func (q *Queries) InsertAccount(ctx context.Context, arg InsertAccountParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertAccount, arg.ID, arg.UserID, arg.Name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// MaintenanceRecordColumns is the column order of CopyMaintenanceRecords.
var MaintenanceRecordColumns = []string{
	"id",
	"user_id",
	"account_id",
	"product_name",
	"product_type",
	"vendor_name",
	"purchase_date",
	"start_date",
	"end_date",
	"cost",
	"income",
	"profit",
	"margin_percent",
	"serial_number",
	"notes",
	"status",
	"renewal_reminder_days",
}

type CopyMaintenanceRecordsParams struct {
	ID                  pgtype.UUID
	UserID              pgtype.UUID
	AccountID           pgtype.UUID
	ProductName         string
	ProductType         string
	VendorName          pgtype.Text
	PurchaseDate        pgtype.Date
	StartDate           pgtype.Date
	EndDate             pgtype.Date
	Cost                pgtype.Numeric
	Income              pgtype.Numeric
	Profit              pgtype.Numeric
	MarginPercent       pgtype.Numeric
	SerialNumber        pgtype.Text
	Notes               pgtype.Text
	Status              string
	RenewalReminderDays int32
}

// iteratorForCopyMaintenanceRecords implements pgx.CopyFromSource.
type iteratorForCopyMaintenanceRecords struct {
	rows                 []CopyMaintenanceRecordsParams
	skippedFirstNextCall bool
}

func (r *iteratorForCopyMaintenanceRecords) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForCopyMaintenanceRecords) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].ID,
		r.rows[0].UserID,
		r.rows[0].AccountID,
		r.rows[0].ProductName,
		r.rows[0].ProductType,
		r.rows[0].VendorName,
		r.rows[0].PurchaseDate,
		r.rows[0].StartDate,
		r.rows[0].EndDate,
		r.rows[0].Cost,
		r.rows[0].Income,
		r.rows[0].Profit,
		r.rows[0].MarginPercent,
		r.rows[0].SerialNumber,
		r.rows[0].Notes,
		r.rows[0].Status,
		r.rows[0].RenewalReminderDays,
	}, nil
}

func (r iteratorForCopyMaintenanceRecords) Err() error {
	return nil
}

// CopyMaintenanceRecords bulk-loads records with COPY. Run it inside a
// transaction to make the batch all-or-nothing.
func (q *Queries) CopyMaintenanceRecords(ctx context.Context, arg []CopyMaintenanceRecordsParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"maintenance_records"}, MaintenanceRecordColumns, &iteratorForCopyMaintenanceRecords{rows: arg})
}

const listActiveMaintenance = `-- name: ListActiveMaintenance :many
SELECT m.id, m.user_id, m.account_id, a.name AS account_name, m.product_name,
       m.product_type, m.vendor_name, m.serial_number, m.end_date, m.cost,
       m.status, m.renewal_reminder_days
FROM maintenance_records m
LEFT JOIN accounts a ON a.id = m.account_id
WHERE m.user_id = $1
  AND m.status = 'active'
  AND m.end_date IS NOT NULL
ORDER BY m.end_date, m.id
`

type MaintenanceReportRow struct {
	ID                  pgtype.UUID
	UserID              pgtype.UUID
	AccountID           pgtype.UUID
	AccountName         pgtype.Text
	ProductName         string
	ProductType         string
	VendorName          pgtype.Text
	SerialNumber        pgtype.Text
	EndDate             pgtype.Date
	Cost                pgtype.Numeric
	Status              string
	RenewalReminderDays int32
}

func (q *Queries) ListActiveMaintenance(ctx context.Context, userID pgtype.UUID) ([]MaintenanceReportRow, error) {
	rows, err := q.db.Query(ctx, listActiveMaintenance, userID)
	if err != nil {
		return nil, err
	}
	return scanReportRows(rows)
}

const listMaintenanceDueForReminder = `-- name: ListMaintenanceDueForReminder :many
SELECT m.id, m.user_id, m.account_id, a.name AS account_name, m.product_name,
       m.product_type, m.vendor_name, m.serial_number, m.end_date, m.cost,
       m.status, m.renewal_reminder_days
FROM maintenance_records m
LEFT JOIN accounts a ON a.id = m.account_id
WHERE m.status = 'active'
  AND m.end_date >= $1::date
  AND m.end_date <= $1::date + m.renewal_reminder_days
ORDER BY m.end_date, m.id
`

func (q *Queries) ListMaintenanceDueForReminder(ctx context.Context, asOf pgtype.Date) ([]MaintenanceReportRow, error) {
	rows, err := q.db.Query(ctx, listMaintenanceDueForReminder, asOf)
	if err != nil {
		return nil, err
	}
	return scanReportRows(rows)
}

func scanReportRows(rows pgx.Rows) ([]MaintenanceReportRow, error) {
	defer rows.Close()
	var items []MaintenanceReportRow
	for rows.Next() {
		var i MaintenanceReportRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.AccountID,
			&i.AccountName,
			&i.ProductName,
			&i.ProductType,
			&i.VendorName,
			&i.SerialNumber,
			&i.EndDate,
			&i.Cost,
			&i.Status,
			&i.RenewalReminderDays,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertImportRun = `-- name: InsertImportRun :exec
INSERT INTO import_runs (
    id, user_id, file_name, data_rows, parsed, dropped, inserted,
    matched_accounts, status, error, ip_address, started_at, finished_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
`

type InsertImportRunParams struct {
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

func (q *Queries) InsertImportRun(ctx context.Context, arg InsertImportRunParams) error {
	_, err := q.db.Exec(ctx, insertImportRun,
		arg.ID,
		arg.UserID,
		arg.FileName,
		arg.DataRows,
		arg.Parsed,
		arg.Dropped,
		arg.Inserted,
		arg.MatchedAccounts,
		arg.Status,
		arg.Error,
		arg.IpAddress,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const listImportRuns = `-- name: ListImportRuns :many
SELECT id, user_id, file_name, data_rows, parsed, dropped, inserted,
       matched_accounts, status, error, ip_address, started_at, finished_at
FROM import_runs
WHERE user_id = $1
ORDER BY started_at DESC
LIMIT $2
`

type ListImportRunsParams struct {
	UserID pgtype.UUID
	Limit  int32
}

func (q *Queries) ListImportRuns(ctx context.Context, arg ListImportRunsParams) ([]ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		var i ImportRun
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.FileName,
			&i.DataRows,
			&i.Parsed,
			&i.Dropped,
			&i.Inserted,
			&i.MatchedAccounts,
			&i.Status,
			&i.Error,
			&i.IpAddress,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
