package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu sync.Mutex

	accounts   []Account
	accountErr error

	failChunk int // 1-based insert call that fails; 0 never fails
	calls     int
	chunks    [][]NewMaintenanceRecord

	records   []MaintenanceRecord
	reminders []MaintenanceRecord
	runs      []ImportRun
}

var errFakeInsert = errors.New("connection reset by peer")

func (f *fakeStore) AccountDirectory(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	return f.accounts, f.accountErr
}

func (f *fakeStore) InsertMaintenanceRecords(ctx context.Context, records []NewMaintenanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.failChunk {
		return errFakeInsert
	}
	f.chunks = append(f.chunks, append([]NewMaintenanceRecord(nil), records...))
	return nil
}

func (f *fakeStore) ActiveMaintenanceRecords(ctx context.Context, userID uuid.UUID) ([]MaintenanceRecord, error) {
	return f.records, nil
}

func (f *fakeStore) MaintenanceDueForReminder(ctx context.Context, asOf time.Time) ([]MaintenanceRecord, error) {
	return f.reminders, nil
}

func (f *fakeStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) ImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ImportRun
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.runs[i].UserID == userID {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) inserted() []NewMaintenanceRecord {
	var all []NewMaintenanceRecord
	for _, c := range f.chunks {
		all = append(all, c...)
	}
	return all
}
