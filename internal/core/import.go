package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/JonMunkholm/crm/internal/logging"
)

// ErrNoRowsDetected is returned by Import when the text parsed into zero
// records, usually because of a wrong delimiter or unrecognized headers.
var ErrNoRowsDetected = errors.New("no rows detected, check delimiter and headers")

// errNoFileProvided is returned when an import request carries no text.
var errNoFileProvided = errors.New("no file provided")

// ChunkInsertError reports a chunk that failed after earlier chunks were
// committed. Inserted counts only records from fully committed chunks.
type ChunkInsertError struct {
	Inserted int   // records committed before the failure
	Total    int   // records the import attempted
	Chunk    int   // 1-based index of the failed chunk
	Err      error // underlying persistence error
}

func (e *ChunkInsertError) Error() string {
	return fmt.Sprintf("insert chunk %d failed after %d of %d records: %v", e.Chunk, e.Inserted, e.Total, e.Err)
}

func (e *ChunkInsertError) Unwrap() error {
	return e.Err
}

// InsertInChunks persists records through p in chunks of at most size. It
// stops at the first failing chunk and returns how many records were
// committed before it.
func InsertInChunks(ctx context.Context, p Persistence, records []NewMaintenanceRecord, size int) (int, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}

	inserted := 0
	for start, chunk := 0, 1; start < len(records); start, chunk = start+size, chunk+1 {
		end := min(start+size, len(records))
		if err := ctx.Err(); err != nil {
			return inserted, &ChunkInsertError{Inserted: inserted, Total: len(records), Chunk: chunk, Err: err}
		}
		if err := p.InsertMaintenanceRecords(ctx, records[start:end]); err != nil {
			return inserted, &ChunkInsertError{Inserted: inserted, Total: len(records), Chunk: chunk, Err: err}
		}
		inserted = end
	}
	return inserted, nil
}

// AccountIndex resolves vendor names to account ids by case-insensitive
// exact match. When two accounts fold to the same name the first one wins.
type AccountIndex map[string]uuid.UUID

// NewAccountIndex builds an index over the account directory.
func NewAccountIndex(accounts []Account) AccountIndex {
	idx := make(AccountIndex, len(accounts))
	for _, a := range accounts {
		key := foldName(a.Name)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = a.ID
		}
	}
	return idx
}

// Resolve returns the account id for name, or nil.
func (idx AccountIndex) Resolve(name *string) *uuid.UUID {
	if name == nil {
		return nil
	}
	id, ok := idx[foldName(*name)]
	if !ok {
		return nil
	}
	return &id
}

func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// BuildRecords attaches ownership, account ids and reminder days to candidates.
// It returns the records and how many resolved to an account.
func BuildRecords(userID uuid.UUID, candidates []MaintenanceCandidate, idx AccountIndex, reminderDays int) ([]NewMaintenanceRecord, int) {
	records := make([]NewMaintenanceRecord, len(candidates))
	matched := 0
	for i, c := range candidates {
		accountID := idx.Resolve(c.VendorName)
		if accountID != nil {
			matched++
		}
		records[i] = NewMaintenanceRecord{
			MaintenanceCandidate: c,
			ID:                   uuid.New(),
			UserID:               userID,
			AccountID:            accountID,
			RenewalReminderDays:  reminderDays,
		}
	}
	return records, matched
}

// ImportRequest is the input of Service.Import.
type ImportRequest struct {
	UserID   uuid.UUID
	FileName string
	Text     string
}

// ImportResult summarizes an import. It is returned alongside
// ErrNoRowsDetected and *ChunkInsertError so callers can report counts.
type ImportResult struct {
	RunID           uuid.UUID       `json:"run_id"`
	Status          ImportRunStatus `json:"status"`
	DataRows        int             `json:"data_rows"`
	Parsed          int             `json:"parsed"`
	Dropped         int             `json:"dropped"`
	Inserted        int             `json:"inserted"`
	MatchedAccounts int             `json:"matched_accounts"`
	Duration        time.Duration   `json:"duration_ns"`
}

// Import parses text, resolves accounts, and persists the records in chunks.
// Every call is recorded as an ImportRun, including failed ones.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errNoFileProvided
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	run := ImportRun{
		ID:        uuid.New(),
		UserID:    req.UserID,
		FileName:  req.FileName,
		IPAddress: GetIPAddressFromContext(ctx),
		StartedAt: s.now(),
	}
	log := logging.WithFields(ctx, "run_id", run.ID, "user_id", req.UserID, "file", req.FileName)
	log.Info("import started")

	result, err := s.runImport(ctx, req, &run)
	result.RunID = run.ID
	result.Duration = s.now().Sub(run.StartedAt)

	run.FinishedAt = s.now()
	run.Status = result.Status
	if err != nil {
		run.Error = err.Error()
	}
	// The run is recorded even if the import context timed out.
	if recErr := s.store.RecordImportRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Error("record import run failed", "error", recErr)
	}

	switch {
	case errors.Is(err, ErrNoRowsDetected):
		log.Warn("import found no rows", "data_rows", result.DataRows, "dropped", result.Dropped)
	case err != nil:
		log.Error("import failed",
			"error", err,
			"inserted", result.Inserted,
			"parsed", result.Parsed,
		)
	default:
		log.Info("import completed",
			"inserted", result.Inserted,
			"dropped", result.Dropped,
			"matched_accounts", result.MatchedAccounts,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}
	return result, err
}

// runImport does the work of Import and fills run counters.
func (s *Service) runImport(ctx context.Context, req ImportRequest, run *ImportRun) (*ImportResult, error) {
	parsed := ParseWithStats(req.Text)
	result := &ImportResult{
		DataRows: parsed.DataRows,
		Parsed:   len(parsed.Candidates),
		Dropped:  parsed.Dropped,
	}
	run.DataRows, run.Parsed, run.Dropped = result.DataRows, result.Parsed, result.Dropped

	if len(parsed.Candidates) == 0 {
		result.Status = RunNoRows
		return result, ErrNoRowsDetected
	}

	accounts, err := s.store.AccountDirectory(ctx, req.UserID)
	if err != nil {
		result.Status = RunFailed
		return result, fmt.Errorf("load account directory: %w", err)
	}

	records, matched := BuildRecords(req.UserID, parsed.Candidates, NewAccountIndex(accounts), s.reminderDays)
	result.MatchedAccounts = matched
	run.MatchedAccount = matched

	inserted, err := InsertInChunks(ctx, s.store, records, s.chunkSize)
	result.Inserted = inserted
	run.Inserted = inserted
	switch {
	case err == nil:
		result.Status = RunCompleted
	case inserted > 0:
		result.Status = RunPartial
	default:
		result.Status = RunFailed
	}
	return result, err
}
