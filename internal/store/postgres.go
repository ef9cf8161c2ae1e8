package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
	db "github.com/JonMunkholm/crm/internal/database"
)

// Postgres is the pgx-backed store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens and pings a connection pool.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, connectTimeout time.Duration) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Driver() string { return config.DriverPostgres }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

// Migrate applies the embedded schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, p.pool)
}

// AccountDirectory implements core.AccountResolver.
func (p *Postgres) AccountDirectory(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	rows, err := db.New(p.pool).ListAccounts(ctx, db.ToPgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, len(rows))
	for i, r := range rows {
		accounts[i] = core.Account{ID: db.FromPgUUID(r.ID), Name: r.Name}
	}
	return accounts, nil
}

// SaveAccounts upserts account directory entries for a user.
func (p *Postgres) SaveAccounts(ctx context.Context, userID uuid.UUID, accounts []core.Account) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	q := db.New(tx)
	for _, a := range accounts {
		n, err := q.InsertAccount(ctx, db.InsertAccountParams{
			ID:     db.ToPgUUID(a.ID),
			UserID: db.ToPgUUID(userID),
			Name:   a.Name,
		})
		if err != nil {
			return fmt.Errorf("insert account %q: %w", a.Name, err)
		}
		if n == 0 {
			return fmt.Errorf("insert account %q (%s): %w", a.Name, a.ID, ErrAccountOwned)
		}
	}
	return tx.Commit(ctx)
}

// InsertMaintenanceRecords copies one chunk inside a transaction.
func (p *Postgres) InsertMaintenanceRecords(ctx context.Context, records []core.NewMaintenanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	params := make([]db.CopyMaintenanceRecordsParams, len(records))
	for i, r := range records {
		params[i] = copyParams(r)
	}

	n, err := db.New(tx).CopyMaintenanceRecords(ctx, params)
	if err != nil {
		return fmt.Errorf("copy maintenance records: %w", err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("copy maintenance records: wrote %d of %d rows", n, len(records))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ActiveMaintenanceRecords implements core.RecordSource.
func (p *Postgres) ActiveMaintenanceRecords(ctx context.Context, userID uuid.UUID) ([]core.MaintenanceRecord, error) {
	rows, err := db.New(p.pool).ListActiveMaintenance(ctx, db.ToPgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list active maintenance: %w", err)
	}
	return reportRecords(rows), nil
}

// MaintenanceDueForReminder implements core.ReminderSource.
func (p *Postgres) MaintenanceDueForReminder(ctx context.Context, asOf time.Time) ([]core.MaintenanceRecord, error) {
	rows, err := db.New(p.pool).ListMaintenanceDueForReminder(ctx, db.ToPgDateTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return reportRecords(rows), nil
}

// RecordImportRun implements core.RunRecorder.
func (p *Postgres) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	err := db.New(p.pool).InsertImportRun(ctx, db.InsertImportRunParams{
		ID:              db.ToPgUUID(run.ID),
		UserID:          db.ToPgUUID(run.UserID),
		FileName:        run.FileName,
		DataRows:        int32(run.DataRows),
		Parsed:          int32(run.Parsed),
		Dropped:         int32(run.Dropped),
		Inserted:        int32(run.Inserted),
		MatchedAccounts: int32(run.MatchedAccount),
		Status:          string(run.Status),
		Error:           db.ToPgTextValue(run.Error),
		IpAddress:       db.ToPgTextValue(run.IPAddress),
		StartedAt:       db.ToPgTimestamptz(run.StartedAt),
		FinishedAt:      db.ToPgTimestamptz(run.FinishedAt),
	})
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ImportRuns implements core.RunRecorder.
func (p *Postgres) ImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]core.ImportRun, error) {
	rows, err := db.New(p.pool).ListImportRuns(ctx, db.ListImportRunsParams{
		UserID: db.ToPgUUID(userID),
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}

	runs := make([]core.ImportRun, len(rows))
	for i, r := range rows {
		runs[i] = core.ImportRun{
			ID:             db.FromPgUUID(r.ID),
			UserID:         db.FromPgUUID(r.UserID),
			FileName:       r.FileName,
			DataRows:       int(r.DataRows),
			Parsed:         int(r.Parsed),
			Dropped:        int(r.Dropped),
			Inserted:       int(r.Inserted),
			MatchedAccount: int(r.MatchedAccounts),
			Status:         core.ImportRunStatus(r.Status),
			Error:          r.Error.String,
			IPAddress:      r.IpAddress.String,
			StartedAt:      r.StartedAt.Time,
			FinishedAt:     r.FinishedAt.Time,
		}
	}
	return runs, nil
}

func copyParams(r core.NewMaintenanceRecord) db.CopyMaintenanceRecordsParams {
	status := r.Status
	if status == "" {
		status = core.StatusActive
	}
	return db.CopyMaintenanceRecordsParams{
		ID:                  db.ToPgUUID(r.ID),
		UserID:              db.ToPgUUID(r.UserID),
		AccountID:           db.ToPgUUIDPtr(r.AccountID),
		ProductName:         r.ProductName,
		ProductType:         string(r.ProductType),
		VendorName:          db.ToPgText(r.VendorName),
		PurchaseDate:        db.ToPgDate(r.PurchaseDate),
		StartDate:           db.ToPgDate(r.StartDate),
		EndDate:             db.ToPgDate(r.EndDate),
		Cost:                db.ToPgNumeric(r.Cost),
		Income:              db.ToPgNumeric(r.Income),
		Profit:              db.ToPgNumeric(r.Profit),
		MarginPercent:       db.ToPgNumeric(r.MarginPercent),
		SerialNumber:        db.ToPgText(r.SerialNumber),
		Notes:               db.ToPgText(r.Notes),
		Status:              string(status),
		RenewalReminderDays: int32(r.RenewalReminderDays),
	}
}

func reportRecords(rows []db.MaintenanceReportRow) []core.MaintenanceRecord {
	out := make([]core.MaintenanceRecord, len(rows))
	for i, r := range rows {
		out[i] = core.MaintenanceRecord{
			ID:                  db.FromPgUUID(r.ID),
			UserID:              db.FromPgUUID(r.UserID),
			AccountID:           db.FromPgUUIDPtr(r.AccountID),
			AccountName:         db.FromPgText(r.AccountName),
			ProductName:         r.ProductName,
			ProductType:         core.ProductType(r.ProductType),
			VendorName:          db.FromPgText(r.VendorName),
			SerialNumber:        db.FromPgText(r.SerialNumber),
			EndDate:             db.FromPgDate(r.EndDate),
			Cost:                db.FromPgNumeric(r.Cost),
			Status:              core.Status(r.Status),
			RenewalReminderDays: int(r.RenewalReminderDays),
		}
	}
	return out
}
