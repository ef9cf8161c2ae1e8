package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

// importResponse carries the counts of an import alongside any error, so a
// partial or empty import still reports what happened.
type importResponse struct {
	*core.ImportResult
	Error *ErrorResponse `json:"error,omitempty"`
}

// handleHealth reports liveness and backend reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			status["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// handlePreview parses the input and resolves accounts without persisting.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	userID, err := core.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusUnauthorized)
		return
	}

	in, err := s.readImportInput(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	preview, err := s.service.Preview(r.Context(), userID, in.Text)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleImport parses, resolves and persists the input in chunks.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID, err := core.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusUnauthorized)
		return
	}

	in, err := s.readImportInput(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.Import(r.Context(), core.ImportRequest{
		UserID:   userID,
		FileName: in.FileName,
		Text:     in.Text,
	})
	if err != nil {
		if result == nil || isHTMX(r) {
			respondError(w, r, err, statusFor(err))
			return
		}
		// Counts are still meaningful for empty and partial imports.
		msg := newErrorResponse(core.MapError(err))
		logging.FromContext(r.Context()).Error("import failed",
			"error", err,
			"code", msg.Code,
			"inserted", result.Inserted,
		)
		writeJSON(w, statusFor(err), importResponse{ImportResult: result, Error: &msg})
		return
	}

	writeJSON(w, http.StatusCreated, importResponse{ImportResult: result})
}

// handleImportHistory lists the user's recent import runs.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := core.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusUnauthorized)
		return
	}

	runs, err := s.service.ImportHistory(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleImportStatus reports import slot usage.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleExpirationReport returns the bucketed report as JSON.
func (s *Server) handleExpirationReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExportExpiration downloads the report records as CSV.
func (s *Server) handleExportExpiration(w http.ResponseWriter, r *http.Request) {
	userID, err := core.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusUnauthorized)
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	name, body, err := s.service.ExportExpirationCSV(r.Context(), userID, asOf)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := w.Write([]byte(body)); err != nil {
		logging.FromContext(r.Context()).Error("write export", "error", err)
	}
}

// handleExpirationPage renders the report as HTML.
func (s *Server) handleExpirationPage(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	q := url.Values{}
	q.Set("as_of", report.AsOf.Format("2006-01-02"))
	if id, err := core.UserIDFromContext(r.Context()); err == nil {
		q.Set("user_id", id.String())
	}
	exportURL := "/api/maintenance/expiration/export?" + q.Encode()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExpirationPage(report, exportURL).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render expiration page", "error", err)
	}
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (core.ExpirationReport, bool) {
	userID, err := core.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusUnauthorized)
		return core.ExpirationReport{}, false
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return core.ExpirationReport{}, false
	}

	report, err := s.service.ExpirationReport(r.Context(), userID, asOf)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		respondError(w, r, err, status)
		return core.ExpirationReport{}, false
	}
	return report, true
}
