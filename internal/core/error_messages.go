package core

// # Error Codes Reference
//
// User-facing messages carry a code that support staff can look up here.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No rows detected: the file parsed but produced no records
//	         Action: Check the delimiter and that the header has Account Name, Products and Serial Number
//	         Match: ErrNoRowsDetected
//
//	IMP002 - Partial import: a chunk failed after earlier chunks were saved
//	         Action: Review the import history before retrying to avoid duplicates
//	         Match: *ChunkInsertError with Inserted > 0
//
//	IMP003 - Import failed: the first chunk failed, nothing was saved
//	         Action: Please try again
//	         Match: *ChunkInsertError with Inserted == 0
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Match: ErrFileTooLarge
//	FILE002 - Empty file              Match: ErrEmptyFile
//	FILE003 - Encoding error          Patterns: "encoding error"
//	FILE004 - No file provided        Patterns: "no file provided"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key             Patterns: "duplicate key"
//	DB002 - Foreign key               Patterns: "violates foreign key", "foreign key constraint"
//	DB003 - Connection refused        Patterns: "connection refused"
//	DB004 - Connection reset          Patterns: "connection reset"
//	DB005 - Timeout                   Patterns: "timeout"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled        Match: context.Canceled
//	REQ002 - Request timeout          Match: context.DeadlineExceeded
//	REQ003 - Invalid date             Patterns: "invalid as_of"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited            Patterns: "rate limit"
//	RATE002 - Imports busy            Match: ErrTooManyImports
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Missing user            Match: ErrMissingUser
//
// # Default Error (ERR000)
//
// Sentinel and typed errors are checked with errors.Is/As first. Remaining
// errors are matched case-insensitively against the patterns below; the first
// match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNoRows = UserMessage{
		Message: "No rows detected",
		Action:  "Check the delimiter and that the header has Account Name, Products and Serial Number",
		Code:    "IMP001",
	}
	msgPartial = UserMessage{
		Message: "Import stopped part way; earlier records were saved",
		Action:  "Review the import history before retrying to avoid duplicates",
		Code:    "IMP002",
	}
	msgInsertFailed = UserMessage{
		Message: "Records could not be saved",
		Action:  "Please try again",
		Code:    "IMP003",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header and data rows",
		Code:    "FILE002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try importing a smaller file",
		Code:    "REQ002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "RATE002",
	}
	msgMissingUser = UserMessage{
		Message: "No user was given for this request",
		Action:  "Sign in again",
		Code:    "AUTH001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is checked in order after the typed errors.
var errorPatterns = []errorPattern{
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file or text was provided",
			Action:  "Select a file or paste the spreadsheet contents",
			Code:    "FILE004",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "A referenced account no longer exists",
			Action:  "Refresh the account list and import again",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "A referenced account no longer exists",
			Action:  "Refresh the account list and import again",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "invalid as_of",
		msg: UserMessage{
			Message: "Invalid report date",
			Action:  "Use YYYY-MM-DD",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var chunkErr *ChunkInsertError
	switch {
	case errors.Is(err, ErrNoRowsDetected):
		return msgNoRows
	case errors.As(err, &chunkErr):
		if chunkErr.Inserted > 0 {
			return msgPartial
		}
		return msgInsertFailed
	case errors.Is(err, ErrFileTooLarge):
		return msgTooLarge
	case errors.Is(err, ErrEmptyFile):
		return msgEmptyFile
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, ErrMissingUser):
		return msgMissingUser
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
