package importer

import (
	"errors"
	"fmt"
)

// Kind classifies import failures.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindSource            Kind = "source_error"
	KindBulkLoad          Kind = "bulk_load_failure"
	KindFallbackInsert    Kind = "fallback_insert_failure"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrSource            = errors.New("source error")
	ErrBulkLoad          = errors.New("bulk load failure")
	ErrFallbackInsert    = errors.New("fallback insert failure")
)

var kindSentinels = map[Kind]error{
	KindInvalidInput:      ErrInvalidInput,
	KindInvalidIdentifier: ErrInvalidIdentifier,
	KindSource:            ErrSource,
	KindBulkLoad:          ErrBulkLoad,
	KindFallbackInsert:    ErrFallbackInsert,
}

// Error is the typed failure returned by Import.
//
// Subject names what the error is about: the offending identifier, the
// source path or the target table. Err, when set, is the underlying driver
// or reader error and stays reachable through errors.As.
type Error struct {
	Kind    Kind
	Subject string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

func invalidInput(path string) *Error {
	return &Error{Kind: KindInvalidInput, Subject: path, Msg: "file not found: " + path}
}

func invalidIdentifier(kind, name string) *Error {
	return &Error{
		Kind:    KindInvalidIdentifier,
		Subject: name,
		Msg:     fmt.Sprintf("invalid %s name: %s", kind, name),
	}
}

func sourceError(path, msg string, err error) *Error {
	return &Error{Kind: KindSource, Subject: path, Msg: msg, Err: err}
}

func bulkLoadError(table, msg string, err error) *Error {
	return &Error{Kind: KindBulkLoad, Subject: table, Msg: msg, Err: err}
}

func fallbackInsertError(table string, err error) *Error {
	return &Error{
		Kind:    KindFallbackInsert,
		Subject: table,
		Msg:     "insert into " + table + " failed",
		Err:     err,
	}
}
