package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("Account Name,Products"), "Account Name,Products"},
		{"utf8 bom", []byte("\xEF\xBB\xBFabc"), "abc"},
		{"utf8 multibyte", []byte("Café €5"), "Café €5"},
		{"utf16 le bom", []byte{0xFF, 0xFE, 'a', 0x00, 'b', 0x00}, "ab"},
		{"utf16 be bom", []byte{0xFE, 0xFF, 0x00, 'a', 0x00, 'b'}, "ab"},
		{"windows-1252", []byte("caf\xe9 \x80100"), "café €100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.input)
			if err != nil {
				t.Fatalf("DecodeText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadImportText(t *testing.T) {
	got, err := ReadImportText(strings.NewReader("Products\nOffice"), 100)
	if err != nil {
		t.Fatalf("ReadImportText() error = %v", err)
	}
	if got != "Products\nOffice" {
		t.Errorf("ReadImportText() = %q", got)
	}
}

func TestReadImportText_TooLarge(t *testing.T) {
	_, err := ReadImportText(bytes.NewReader(make([]byte, 11)), 10)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestReadImportText_ExactLimit(t *testing.T) {
	if _, err := ReadImportText(strings.NewReader("0123456789"), 10); err != nil {
		t.Errorf("file at the limit should be accepted: %v", err)
	}
}

func TestReadImportText_Empty(t *testing.T) {
	for _, in := range []string{"", " \n\t "} {
		if _, err := ReadImportText(strings.NewReader(in), 10); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("ReadImportText(%q) error = %v, want ErrEmptyFile", in, err)
		}
	}
}
