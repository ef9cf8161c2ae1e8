package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
)

const sampleCSV = "Account Name,Purchase Date,Start Date,End Date,Products,Serial Number,Income,COGS,Profit,Margin %,Notes\n" +
	"Acme Corp,2024-01-15,2024-01-15,2024-06-20,Microsoft Office 365,ABC123,599.99,299.99,300.00,50.0%,\n" +
	"Globex,2024-02-01,2024-02-01,2024-05-01,Dell PowerEdge R740 Server,SRV-001,1200.00,800.00,400.00,33.3%,\n"

var (
	testUser = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	testAsOf = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

// memStore is an in-memory core.Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	accounts []core.Account
	records  []core.MaintenanceRecord
	inserted []core.NewMaintenanceRecord
	runs     []core.ImportRun
	pingErr  error
}

func (m *memStore) AccountDirectory(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	return m.accounts, nil
}

func (m *memStore) InsertMaintenanceRecords(ctx context.Context, records []core.NewMaintenanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, records...)
	return nil
}

func (m *memStore) ActiveMaintenanceRecords(ctx context.Context, userID uuid.UUID) ([]core.MaintenanceRecord, error) {
	return m.records, nil
}

func (m *memStore) MaintenanceDueForReminder(ctx context.Context, asOf time.Time) ([]core.MaintenanceRecord, error) {
	return nil, nil
}

func (m *memStore) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]core.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ImportRun(nil), m.runs...), nil
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 64 * 1024},
		Rate:   config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
	}
}

func newTestServer(t *testing.T, store *memStore, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(store, core.Options{Now: func() time.Time { return testAsOf }})
	s := NewServer(svc, cfg, store)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func withUser(req *http.Request) *http.Request {
	req.Header.Set("X-User-ID", testUser.String())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	store.pingErr = errors.New("down")
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with failing backend = %d", rec.Code)
	}
}

func TestImport_RawBody(t *testing.T) {
	acme := uuid.New()
	store := &memStore{accounts: []core.Account{{ID: acme, Name: "acme corp"}}}
	s := newTestServer(t, store, testConfig())

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/import?file_name=renewals.csv", strings.NewReader(sampleCSV)))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Status          string `json:"status"`
		Inserted        int    `json:"inserted"`
		MatchedAccounts int    `json:"matched_accounts"`
	}
	decode(t, rec, &got)
	if got.Status != "completed" || got.Inserted != 2 || got.MatchedAccounts != 1 {
		t.Errorf("response = %+v", got)
	}
	if len(store.runs) != 1 || store.runs[0].FileName != "renewals.csv" {
		t.Errorf("runs = %+v", store.runs)
	}
	if store.runs[0].IPAddress != "192.0.2.1" {
		t.Errorf("IPAddress = %q", store.runs[0].IPAddress)
	}
}

func TestImport_Multipart(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.tsv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(strings.ReplaceAll(sampleCSV, ",", "\t")))
	mw.Close()

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/import", &body))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(store.inserted) != 2 || store.runs[0].FileName != "upload.tsv" {
		t.Errorf("inserted %d, runs %+v", len(store.inserted), store.runs)
	}
}

func TestImport_FormText(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store, testConfig())

	form := url.Values{"text": {sampleCSV}}
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/import", strings.NewReader(form.Encode())))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := do(s, req); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(store.inserted) != 2 {
		t.Errorf("inserted %d", len(store.inserted))
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		user     bool
		ctype    string
		body     string
		status   int
		wantCode string
	}{
		{"missing user", false, "text/csv", sampleCSV, http.StatusUnauthorized, "AUTH001"},
		{"no rows", true, "text/csv", "hello\nworld\n", http.StatusUnprocessableEntity, "IMP001"},
		{"empty body", true, "text/csv", "", http.StatusBadRequest, "FILE002"},
		{"empty form text", true, "application/x-www-form-urlencoded", "text=", http.StatusBadRequest, "FILE004"},
		{"too large", true, "text/csv", strings.Repeat("x", 64*1024+1), http.StatusRequestEntityTooLarge, "FILE001"},
		{"bad json", true, "application/json", "{", http.StatusBadRequest, "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &memStore{}, testConfig())
			req := httptest.NewRequest(http.MethodPost, "/api/maintenance/import", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ctype)
			if tt.user {
				withUser(req)
			}
			rec := do(s, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}

			var got struct {
				Code  string `json:"code"`
				Error *struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			// Import outcomes nest the error next to the counts.
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				var flat ErrorResponse
				decode(t, rec, &flat)
				got.Code = flat.Code
			}
			code := got.Code
			if got.Error != nil {
				code = got.Error.Code
			}
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q (body %s)", code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestPreview_JSONBody(t *testing.T) {
	store := &memStore{accounts: []core.Account{{ID: uuid.New(), Name: "Globex"}}}
	s := newTestServer(t, store, testConfig())

	body, _ := json.Marshal(importInput{Text: sampleCSV})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/preview", bytes.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got core.ImportPreview
	decode(t, rec, &got)
	if len(got.Rows) != 2 || got.MatchedAccounts != 1 {
		t.Errorf("preview = %+v", got)
	}
	if got.Rows[1].ProductType != core.ProductHardware {
		t.Errorf("row 1 type = %s", got.Rows[1].ProductType)
	}
	if len(store.inserted) != 0 || len(store.runs) != 0 {
		t.Error("preview must not persist")
	}
}

func reportStore() *memStore {
	end := testAsOf.AddDate(0, 0, 5)
	overdue := testAsOf.AddDate(0, 0, -3)
	cost := 100.0
	name := `Acme "West"`
	return &memStore{records: []core.MaintenanceRecord{
		{ID: uuid.New(), ProductName: "Office 365", ProductType: core.ProductSoftware, AccountName: &name, EndDate: &end, Cost: &cost, Status: core.StatusActive},
		{ID: uuid.New(), ProductName: "Dell Server", ProductType: core.ProductHardware, EndDate: &overdue, Status: core.StatusActive},
	}}
}

func TestExpirationReport(t *testing.T) {
	s := newTestServer(t, reportStore(), testConfig())

	rec := do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/expiration", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got core.ExpirationReport
	decode(t, rec, &got)
	if len(got.Groups) != len(core.Periods) {
		t.Fatalf("groups = %d", len(got.Groups))
	}
	if got.Summary.Critical != 2 || got.Summary.TotalRecords != 2 || got.Summary.TotalCost != 100 {
		t.Errorf("summary = %+v", got.Summary)
	}

	rec = do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/expiration?as_of=06/01/2024", nil)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad as_of status = %d", rec.Code)
	}
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Code != "REQ003" {
		t.Errorf("bad as_of code = %q", errResp.Code)
	}
}

func TestExportExpiration(t *testing.T) {
	s := newTestServer(t, reportStore(), testConfig())

	rec := do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/expiration/export?as_of=2024-06-01", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="maintenance-expiration-report-2024-06-01.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	lines := strings.Split(rec.Body.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Acme ""West"""`) {
		t.Errorf("embedded quotes not doubled: %s", rec.Body.String())
	}
}

func TestExpirationPage(t *testing.T) {
	s := newTestServer(t, reportStore(), testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/maintenance/expiration?user_id="+testUser.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Dell Server") || !strings.Contains(body, "user_id="+testUser.String()) {
		t.Errorf("page body = %s", body)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/maintenance/expiration", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without user status = %d", rec.Code)
	}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Error("page errors should not be JSON")
	}
}

func TestHTMXErrorPartial(t *testing.T) {
	s := newTestServer(t, &memStore{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/maintenance/expiration", nil)
	req.Header.Set("HX-Request", "true")
	rec := do(s, req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "AUTH001") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestImportHistory(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store, testConfig())

	rec := do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/imports", nil)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"runs":[]`) {
		t.Fatalf("empty history: %d %s", rec.Code, rec.Body.String())
	}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/import", strings.NewReader(sampleCSV)))
	do(s, req)

	var got struct {
		Runs []core.ImportRun `json:"runs"`
	}
	decode(t, do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/imports", nil))), &got)
	if len(got.Runs) != 1 || got.Runs[0].Status != core.RunCompleted {
		t.Errorf("runs = %+v", got.Runs)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, reportStore(), cfg)

	if rec := do(s, withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/expiration", nil))); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d", rec.Code)
	}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/maintenance/expiration", nil))
	req.Header.Set("X-API-Key", "secret")
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d", rec.Code)
	}

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	s := newTestServer(t, &memStore{}, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Errorf("third request status = %d", rec.Code)
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 1, window: time.Minute}
	if !rl.allow("a") {
		t.Fatal("first request should pass")
	}
	if rl.allow("a") {
		t.Error("second request in window should be limited")
	}
	if !rl.allow("b") {
		t.Error("other clients are counted separately")
	}
	rl.visitors["a"].lastReset = time.Now().Add(-2 * time.Minute)
	if !rl.allow("a") {
		t.Error("a new window should reset the count")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrMissingUser, http.StatusUnauthorized},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrEmptyFile, http.StatusBadRequest},
		{core.ErrNoRowsDetected, http.StatusUnprocessableEntity},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&core.ChunkInsertError{Err: errors.New("x")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestImport_ForwardedClientIPRecorded(t *testing.T) {
	store := &memStore{}
	cfg := testConfig()
	cfg.Security.TrustedProxies = []string{"192.0.2.0/24"}
	s := newTestServer(t, store, cfg)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/maintenance/import", strings.NewReader(sampleCSV)))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Forwarded-For", "198.51.100.77, 192.0.2.10")
	if rec := do(s, req); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(store.runs) != 1 || store.runs[0].IPAddress != "198.51.100.77" {
		t.Errorf("runs = %+v, want forwarded client address", store.runs)
	}
}

func TestImport_UserBoundAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{testUser.String() + ":user-secret", "shared"}

	t.Run("key supplies the user", func(t *testing.T) {
		store := &memStore{}
		s := newTestServer(t, store, cfg)
		req := httptest.NewRequest(http.MethodPost, "/api/maintenance/import", strings.NewReader(sampleCSV))
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("X-API-Key", "user-secret")
		if rec := do(s, req); rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if len(store.runs) != 1 || store.runs[0].UserID != testUser {
			t.Errorf("runs = %+v, want user from key", store.runs)
		}
	})

	t.Run("key refused for another user", func(t *testing.T) {
		store := &memStore{}
		s := newTestServer(t, store, cfg)
		req := httptest.NewRequest(http.MethodGet, "/api/maintenance/imports", nil)
		req.Header.Set("X-User-ID", uuid.New().String())
		req.Header.Set("X-API-Key", "user-secret")
		if rec := do(s, req); rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("shared key still needs a user", func(t *testing.T) {
		store := &memStore{}
		s := newTestServer(t, store, cfg)
		req := httptest.NewRequest(http.MethodGet, "/api/maintenance/imports", nil)
		req.Header.Set("X-API-Key", "shared")
		if rec := do(s, req); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401 for missing user", rec.Code)
		}
	})
}
