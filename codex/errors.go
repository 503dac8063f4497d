package codex

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorNotFound   ErrorKind = "not_found"
	ErrorDuplicate  ErrorKind = "duplicate"
	ErrorConflict   ErrorKind = "conflict"
	ErrorDatabase   ErrorKind = "database"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrValidation = &Error{Kind: ErrorValidation}
	ErrNotFound   = &Error{Kind: ErrorNotFound}
	ErrDuplicate  = &Error{Kind: ErrorDuplicate}
	ErrConflict   = &Error{Kind: ErrorConflict}
	ErrDatabase   = &Error{Kind: ErrorDatabase}
)

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = strings.TrimSpace(msg + " (" + strings.Join(parts, ", ") + ")")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, msg, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// fieldErrors collects validation messages keyed by input field.
type fieldErrors map[string]string

func (f fieldErrors) add(field, format string, args ...any) {
	if _, ok := f[field]; ok {
		return
	}
	f[field] = fmt.Sprintf(format, args...)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &Error{Kind: ErrorValidation, Message: "validation failed", Fields: f}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: ErrorNotFound, Message: fmt.Sprintf(format, args...)}
}

func duplicate(format string, args ...any) *Error {
	return &Error{Kind: ErrorDuplicate, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrorConflict, Message: fmt.Sprintf(format, args...)}
}

// databaseError classifies a persistence failure. Errors already carrying a kind pass
// through, missing rows become not found and unique violations become duplicates.
func databaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: ErrorNotFound, Message: op + ": record not found", Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: ErrorDuplicate, Message: op + ": record already exists", Err: err}
	}
	slog.Error(fmt.Sprintf("[%s] - database error : %s", op, err.Error()))
	return &Error{Kind: ErrorDatabase, Message: op, Err: err}
}

// Result is the uniform shape handed to the presentation layer.
type Result struct {
	Success   bool              `json:"success"`
	Data      any               `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorType ErrorKind         `json:"errorType,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

func ResultFromError(err error) Result {
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind == ErrorDatabase {
		return Result{
			Error:     "an unexpected error occurred while saving, please try again",
			ErrorType: ErrorDatabase,
		}
	}
	msg := ce.Message
	if msg == "" {
		msg = string(ce.Kind)
	}
	return Result{
		Error:     msg,
		ErrorType: ce.Kind,
		Fields:    ce.Fields,
	}
}
