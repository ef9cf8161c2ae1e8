package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/crm/internal/core"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and other fields.
const multipartOverhead = 1 << 20

// importInput is the spreadsheet text of a preview or import request.
type importInput struct {
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

// readImportInput accepts a multipart "file" field, a "text" form field, a
// JSON {"text": ...} body, or the raw request body.
func (s *Server) readImportInput(w http.ResponseWriter, r *http.Request) (importInput, error) {
	maxSize := s.cfg.Import.MaxFileSize
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return importInput{}, formError(err, maxSize)
		}
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return textField(r)
		}
		if err != nil {
			return importInput{}, fmt.Errorf("%w: read form file: %v", errInvalidBody, err)
		}
		defer file.Close()

		text, err := core.ReadImportText(file, maxSize)
		if err != nil {
			return importInput{}, err
		}
		return importInput{FileName: header.Filename, Text: text}, nil

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
		if err := r.ParseForm(); err != nil {
			return importInput{}, formError(err, maxSize)
		}
		return textField(r)

	case "application/json":
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
		var in importInput
		if err := decodeJSON(r, &in); err != nil {
			return importInput{}, formError(err, maxSize)
		}
		if strings.TrimSpace(in.Text) == "" {
			return importInput{}, errNoFileProvided
		}
		return in, nil

	default:
		text, err := core.ReadImportText(r.Body, maxSize)
		if err != nil {
			return importInput{}, err
		}
		return importInput{FileName: r.URL.Query().Get("file_name"), Text: text}, nil
	}
}

func textField(r *http.Request) (importInput, error) {
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		return importInput{}, errNoFileProvided
	}
	return importInput{FileName: r.FormValue("file_name"), Text: text}, nil
}

func formError(err error, maxSize int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
	}
	return fmt.Errorf("%w: %v", errInvalidBody, err)
}

// parseAsOf reads the optional as_of query parameter. Absent means zero,
// which the service treats as today.
func parseAsOf(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: want YYYY-MM-DD", errInvalidAsOf, raw)
	}
	return t, nil
}
