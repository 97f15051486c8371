package core

// User-facing error codes. Users quote the code to support; support looks
// it up here and in the logs.
//
//	DB001-DB007      store constraints and connectivity
//	FILE001-FILE006  reading the spreadsheet
//	IMP001-IMP005    admitting and running the import
//	ERR000           anything else; check the logs for the technical error
//
// Postgres errors are matched by SQLSTATE first. Everything else is matched
// by case-insensitive substring against the error text, first match wins,
// so specific patterns sit above general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgDuplicateKey   = UserMessage{"A record with this key already exists", "Download the error list to review duplicates", "DB001"}
	msgUniqueValue    = UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your sheet", "DB002"}
	msgDuplicateValue = UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}
	msgForeignKey     = UserMessage{"Referenced record does not exist", "Ensure the referenced customer, product or sale exists", "DB003"}
	msgNoDatabase     = UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}
	msgConnReset      = UserMessage{"Database connection was interrupted", "Please try again", "DB005"}
	msgTimeout        = UserMessage{"Operation timed out", "Try importing a smaller file or try again later", "DB006"}
	msgDeadlock       = UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}

	msgFileTooLarge = UserMessage{"File exceeds maximum size limit", "Split the file into smaller sheets", "FILE001"}
	msgBadWorkbook  = UserMessage{"File is not a readable workbook", "Save the sheet as .xlsx or UTF-8 .csv and try again", "FILE002"}
	msgBadCSV       = UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated and quotes are balanced", "FILE002"}
	msgDuplicateCol = UserMessage{"A column name appears more than once in the header row", "Rename or remove the repeated column in row 1", "FILE003"}
	msgNoFile       = UserMessage{"No file was selected", "Please select a spreadsheet to import", "FILE004"}
	msgEmptyFile    = UserMessage{"The uploaded file is empty", "Please upload a spreadsheet with a header row and data rows", "FILE005"}
	msgNoHeader     = UserMessage{"The header row has no column names", "Put the column names from the template in row 1", "FILE006"}

	msgCancelled      = UserMessage{"The import was stopped before it finished", "Rows imported before the stop were kept; re-submit the file to finish", "IMP001"}
	msgBusy           = UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}
	msgRunNotFound    = UserMessage{"Import run not found", "Check the run ID or list recent runs", "IMP003"}
	msgRequestAborted = UserMessage{"Request was cancelled", "Please try again", "IMP004"}
	msgRequestTimeout = UserMessage{"Request timed out", "Try importing a smaller file or check your connection", "IMP005"}

	// defaultMessage is the ERR000 fallback.
	defaultMessage = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

// sqlStateMessages maps Postgres SQLSTATE codes.
var sqlStateMessages = map[string]UserMessage{
	"23505": msgDuplicateKey, // unique_violation
	"23503": msgForeignKey,   // foreign_key_violation
	"40P01": msgDeadlock,     // deadlock_detected
	"57014": msgTimeout,      // query_canceled, raised by statement_timeout
	"53300": msgNoDatabase,   // too_many_connections
	"57P01": msgConnReset,    // admin_shutdown
}

type errorPattern struct {
	patterns []string
	msg      UserMessage
}

var errorPatterns = []errorPattern{
	{[]string{"duplicate key"}, msgDuplicateKey},
	{[]string{"unique constraint"}, msgUniqueValue},
	{[]string{"violates unique"}, msgDuplicateValue},
	{[]string{"foreign key constraint", "violates foreign key"}, msgForeignKey},
	{[]string{"connection refused"}, msgNoDatabase},
	{[]string{"connection reset"}, msgConnReset},
	{[]string{"timeout"}, msgTimeout},
	{[]string{"deadlock"}, msgDeadlock},

	{[]string{"file too large", "request body too large"}, msgFileTooLarge},
	{[]string{"not a valid zip file", "invalid xlsx"}, msgBadWorkbook},
	{[]string{"parse error on line"}, msgBadCSV},
	{[]string{"duplicate column"}, msgDuplicateCol},
	{[]string{"no file provided"}, msgNoFile},
	{[]string{"empty file"}, msgEmptyFile},
	{[]string{"no header row"}, msgNoHeader},

	{[]string{"import cancelled"}, msgCancelled},
	{[]string{"too many imports"}, msgBusy},
	{[]string{"run not found"}, msgRunNotFound},
	{[]string{"context canceled"}, msgRequestAborted},
	{[]string{"context deadline exceeded"}, msgRequestTimeout},
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000; nil maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, p := range ep.patterns {
			if strings.Contains(text, p) {
				return ep.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action". This is the
// text recorded for General and System errors in an import result.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries a technical error together with its user message.
// Error returns the user message; Unwrap returns the technical error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
