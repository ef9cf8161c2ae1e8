package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is the number of records sent per insert call.
const DefaultChunkSize = 500

// DefaultReminderDays is the renewal reminder window for imported records.
const DefaultReminderDays = 30

// DefaultImportTimeout is the maximum duration of one import.
const DefaultImportTimeout = 5 * time.Minute

// DefaultHistoryLimit is how many import runs ImportHistory returns.
const DefaultHistoryLimit = 50

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	ChunkSize     int
	ReminderDays  int
	ImportTimeout time.Duration
	HistoryLimit  int
	MaxConcurrent int
	MaxWait       time.Duration
	Now           func() time.Time
}

// Service provides the maintenance import and expiration reporting operations.
type Service struct {
	store   Store
	limiter *ImportLimiter

	chunkSize     int
	reminderDays  int
	importTimeout time.Duration
	historyLimit  int
	now           func() time.Time
}

// NewService creates a new Service backed by store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:         store,
		limiter:       NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		chunkSize:     opts.ChunkSize,
		reminderDays:  opts.ReminderDays,
		importTimeout: opts.ImportTimeout,
		historyLimit:  opts.HistoryLimit,
		now:           opts.Now,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.reminderDays <= 0 {
		s.reminderDays = DefaultReminderDays
	}
	if s.importTimeout <= 0 {
		s.importTimeout = DefaultImportTimeout
	}
	if s.historyLimit <= 0 {
		s.historyLimit = DefaultHistoryLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PreviewRow is a parsed candidate with its resolved account.
type PreviewRow struct {
	MaintenanceCandidate
	AccountID *uuid.UUID `json:"account_id,omitempty"`
}

// ImportPreview is the result of parsing without persisting.
type ImportPreview struct {
	Rows            []PreviewRow `json:"rows"`
	DataRows        int          `json:"data_rows"`
	Dropped         int          `json:"dropped"`
	MatchedAccounts int          `json:"matched_accounts"`
}

// PreviewImport parses text and resolves accounts against a directory.
// It performs no I/O.
func PreviewImport(text string, accounts []Account) ImportPreview {
	parsed := ParseWithStats(text)
	idx := NewAccountIndex(accounts)

	preview := ImportPreview{
		Rows:     make([]PreviewRow, len(parsed.Candidates)),
		DataRows: parsed.DataRows,
		Dropped:  parsed.Dropped,
	}
	for i, c := range parsed.Candidates {
		row := PreviewRow{MaintenanceCandidate: c, AccountID: idx.Resolve(c.VendorName)}
		if row.AccountID != nil {
			preview.MatchedAccounts++
		}
		preview.Rows[i] = row
	}
	return preview
}

// Preview parses text against the user's account directory.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, text string) (ImportPreview, error) {
	if userID == uuid.Nil {
		return ImportPreview{}, ErrMissingUser
	}
	accounts, err := s.store.AccountDirectory(ctx, userID)
	if err != nil {
		return ImportPreview{}, fmt.Errorf("load account directory: %w", err)
	}
	return PreviewImport(text, accounts), nil
}

// ExpirationReport loads the user's active records and buckets them at asOf.
// A zero asOf means now.
func (s *Service) ExpirationReport(ctx context.Context, userID uuid.UUID, asOf time.Time) (ExpirationReport, error) {
	if userID == uuid.Nil {
		return ExpirationReport{}, ErrMissingUser
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	records, err := s.store.ActiveMaintenanceRecords(ctx, userID)
	if err != nil {
		return ExpirationReport{}, fmt.Errorf("load maintenance records: %w", err)
	}
	return BuildExpirationReport(records, asOf), nil
}

// ExportExpirationCSV returns the export file name and contents for the
// user's report at asOf.
func (s *Service) ExportExpirationCSV(ctx context.Context, userID uuid.UUID, asOf time.Time) (string, string, error) {
	report, err := s.ExpirationReport(ctx, userID, asOf)
	if err != nil {
		return "", "", err
	}
	return ExportFilename(report.AsOf), ExportCSV(report.Records), nil
}

// ImportHistory returns the user's most recent import runs, newest first.
func (s *Service) ImportHistory(ctx context.Context, userID uuid.UUID) ([]ImportRun, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUser
	}
	runs, err := s.store.ImportRuns(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load import history: %w", err)
	}
	return runs, nil
}

// DueReminders returns every user's records whose reminder window is open at asOf.
func (s *Service) DueReminders(ctx context.Context, asOf time.Time) ([]ExpiringRecord, error) {
	records, err := s.store.MaintenanceDueForReminder(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load reminder candidates: %w", err)
	}
	return Reminders(records, asOf), nil
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
