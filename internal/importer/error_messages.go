package importer

// error_messages.go maps import failures to user-facing messages with a
// support code.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Source file not found
//	IMP002 - Invalid table or column name
//	IMP003 - Source file could not be read
//	IMP004 - Bulk load failed
//	IMP005 - Row insert failed
//	IMP006 - Too many imports in progress
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key           Patterns: "duplicate key"
//	DB002 - Unique constraint       Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key             Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused      Patterns: "connection refused"
//	DB005 - Connection reset        Patterns: "connection reset"
//	DB006 - Timeout                 Patterns: "statement timeout", "timeout"
//	DB007 - Deadlock                Patterns: "deadlock"
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Column map invalid     Patterns: "column map"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Driver patterns take precedence over the bulk-load and insert codes, so a
// COPY that hit statement_timeout reports DB006 rather than IMP004.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains.
// The first match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Truncate the table or remove duplicates from the source",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check the source for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review the source for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import parent tables first",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import parent tables first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "statement timeout",
		msg: UserMessage{
			Message: "Bulk load exceeded the statement timeout",
			Action:  "Lower the batch size or raise the COPY timeout",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Lower the batch size or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "column map",
		msg: UserMessage{
			Message: "The column map could not be parsed",
			Action:  "Use source=target pairs or a YAML mapping",
			Code:    "CFG001",
		},
	},
}

var kindMessages = map[Kind]UserMessage{
	KindInvalidInput: {
		Message: "Source file not found",
		Action:  "Check the file path",
		Code:    "IMP001",
	},
	KindInvalidIdentifier: {
		Message: "Invalid table or column name",
		Action:  "Use letters, digits and underscores, with at most one schema qualifier",
		Code:    "IMP002",
	},
	KindSource: {
		Message: "Source file could not be read",
		Action:  "Check that the file is a valid Parquet, XLSX or CSV file with a header",
		Code:    "IMP003",
	},
	KindBulkLoad: {
		Message: "Bulk load failed, the batch was rolled back",
		Action:  "Check that the source columns match the table",
		Code:    "IMP004",
	},
	KindFallbackInsert: {
		Message: "Row insert failed",
		Action:  "Check that the source columns match the table",
		Code:    "IMP005",
	},
}

var tooManyImportsMessage = UserMessage{
	Message: "System is busy processing other imports",
	Action:  "Please wait a moment and try again",
	Code:    "IMP006",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(err)
//	// msg.Code == "IMP002" for an invalid column name
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if errors.Is(err, ErrTooManyImports) {
		return tooManyImportsMessage
	}

	kind := KindOf(err)
	switch kind {
	case KindInvalidInput, KindInvalidIdentifier, KindSource:
		return kindMessages[kind]
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError returns "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
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

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
