package core

// encoding.go turns uploaded bytes into the text the parser expects.
//
// Spreadsheet exports arrive in more than one encoding:
//   - UTF-8, with or without the BOM Excel adds
//   - UTF-16 LE/BE with BOM ("Unicode text" exports)
//   - Windows-1252 from older desktop tools
//
// DecodeText normalizes all of them to a Go string.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrFileTooLarge is returned when an import file exceeds the configured limit.
var ErrFileTooLarge = errors.New("file too large")

// ErrEmptyFile is returned when an import file has no content.
var ErrEmptyFile = errors.New("empty file")

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ReadImportText reads at most maxSize bytes from r and decodes them.
func ReadImportText(r io.Reader, maxSize int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read import file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyFile
	}
	return DecodeText(data)
}

// DecodeText converts raw file bytes to a string. A UTF-16 or UTF-8 BOM selects
// the decoder and is removed; bytes that are not valid UTF-8 are read as
// Windows-1252.
func DecodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) || utf8.Valid(data) {
		out, _, err := transform.Bytes(xunicode.BOMOverride(xunicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", fmt.Errorf("encoding error: %w", err)
		}
		return string(out), nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	return string(out), nil
}
