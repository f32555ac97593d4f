package web

// # Error Codes Reference
//
// Every error answered by the API carries a code support staff can look up.
//
// # Archive Errors (ARC001-ARC099)
//
//	ARC001 - Archive not found: the census archive is missing    (503)
//	ARC002 - Member not found: the CSV is missing from the archive (503)
//	ARC003 - Corrupt archive: not a readable tar stream           (500)
//	ARC004 - Member too large: the CSV exceeds the size limit     (500)
//	ARC005 - Not a file: the member is a directory or link        (500)
//
// # CSV Errors (CSV001-CSV099)
//
//	CSV001 - Missing header: the census CSV has no header row     (500)
//	CSV002 - Malformed CSV: a row could not be parsed             (500)
//	CSV003 - Missing column: Prefecture or Population is absent   (500)
//	CSV004 - Column type: Population is not whole numbers         (500)
//
// # Tokenizer Errors (TOK001-TOK099)
//
//	TOK001 - Invalid pattern: the pattern does not compile        (400)
//	TOK002 - Invalid request: the body is not the expected JSON   (400)
//	TOK003 - Request too large: the body exceeds the size limit   (413)
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Storage disabled: no database is configured           (503)
//	DB002 - Load not found: no rows stored under the load ID      (404)
//	DB003 - Invalid load ID: the load ID is not a UUID            (400)
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request timeout                                      (504)
//	REQ002 - Request cancelled                                    (503)
//
// # Default Error (ERR000)
//
// Fallback when no rule matches; the log holds the technical error.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/census/internal/archive"
	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/nlp"
	"github.com/JonMunkholm/census/internal/store"
)

var (
	errStoreDisabled = errors.New("census store not configured")
	errInvalidBody   = errors.New("invalid request body")
	errInvalidLoadID = errors.New("invalid load id")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorRule struct {
	target error
	status int
	msg    UserMessage
}

// errorRules is matched in order with errors.Is; the first match wins.
var errorRules = []errorRule{
	// Archive
	{archive.ErrArchiveNotFound, http.StatusServiceUnavailable, UserMessage{
		Message: "Census archive not found",
		Action:  "Check CENSUS_ARCHIVE_PATH",
		Code:    "ARC001",
	}},
	{archive.ErrMemberNotFound, http.StatusServiceUnavailable, UserMessage{
		Message: "Census file not found in the archive",
		Action:  "Check CENSUS_MEMBER",
		Code:    "ARC002",
	}},
	{archive.ErrMalformedArchive, http.StatusInternalServerError, UserMessage{
		Message: "Census archive is corrupt",
		Action:  "Replace the archive with a valid tar.gz",
		Code:    "ARC003",
	}},
	{archive.ErrMemberTooLarge, http.StatusInternalServerError, UserMessage{
		Message: "Census file is too large",
		Action:  "Raise CENSUS_MAX_MEMBER_SIZE",
		Code:    "ARC004",
	}},
	{archive.ErrNotRegularFile, http.StatusInternalServerError, UserMessage{
		Message: "Census member is not a regular file",
		Action:  "Check CENSUS_MEMBER",
		Code:    "ARC005",
	}},

	// CSV
	{census.ErrMissingHeader, http.StatusInternalServerError, UserMessage{
		Message: "Census file has no header row",
		Action:  "Regenerate the census CSV",
		Code:    "CSV001",
	}},
	{census.ErrMalformedCSV, http.StatusInternalServerError, UserMessage{
		Message: "Census file is not valid CSV",
		Action:  "Ensure every row has no more fields than the header",
		Code:    "CSV002",
	}},
	{census.ErrMissingColumn, http.StatusInternalServerError, UserMessage{
		Message: "Census file is missing a required column",
		Action:  "The header must include Prefecture and Population",
		Code:    "CSV003",
	}},
	{census.ErrColumnType, http.StatusInternalServerError, UserMessage{
		Message: "Census population values are not whole numbers",
		Action:  "Fix the Population column",
		Code:    "CSV004",
	}},

	// Tokenizer
	{nlp.ErrInvalidPattern, http.StatusBadRequest, UserMessage{
		Message: "Pattern is not a valid regular expression",
		Action:  "Use RE2 syntax, for example [^A-Za-z]+",
		Code:    "TOK001",
	}},
	{errInvalidBody, http.StatusBadRequest, UserMessage{
		Message: "Request body is not valid JSON",
		Action:  `Send {"text": "...", "pattern": "..."}`,
		Code:    "TOK002",
	}},

	// Database
	{errStoreDisabled, http.StatusServiceUnavailable, UserMessage{
		Message: "Census storage is not configured",
		Action:  "Set DATABASE_URL and restart",
		Code:    "DB001",
	}},
	{store.ErrLoadNotFound, http.StatusNotFound, UserMessage{
		Message: "No stored census load with this ID",
		Action:  "Use the load_id returned by POST /api/census/store",
		Code:    "DB002",
	}},
	{errInvalidLoadID, http.StatusBadRequest, UserMessage{
		Message: "Load ID is not a valid UUID",
		Action:  "Use the load_id returned by POST /api/census/store",
		Code:    "DB003",
	}},

	// Request
	{context.DeadlineExceeded, http.StatusGatewayTimeout, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.Canceled, http.StatusServiceUnavailable, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ002",
	}},
}

var tooLargeMessage = UserMessage{
	Message: "Request body is too large",
	Action:  "Send a smaller body",
	Code:    "TOK003",
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a status code and user message.
func MapError(err error) (int, UserMessage) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, tooLargeMessage
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.msg
		}
	}
	return http.StatusInternalServerError, defaultMessage
}
