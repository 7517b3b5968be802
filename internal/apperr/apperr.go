// Package apperr defines the error kinds shared by the manifest, catalog and
// media packages. Core code returns these; the HTTP layer maps them to status
// codes with Status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindStorage
	KindMediaProcessing
	KindDependencyUnavailable
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindMediaProcessing:
		return "media processing"
	case KindDependencyUnavailable:
		return "dependency unavailable"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a typed failure. Path is set for storage and media failures and
// names the file involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func Storage(op, path string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Err: err}
}

func MediaProcessing(op, path string, err error) error {
	return &Error{Kind: KindMediaProcessing, Op: op, Path: path, Err: err}
}

func DependencyUnavailable(op, dependency string) error {
	return &Error{Kind: KindDependencyUnavailable, Op: op, Msg: dependency + " not available"}
}

func NotFound(op, path string) error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Msg: "not found"}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text exposed to API callers. Storage details stay in
// the logs.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindValidation:
		return e.Msg
	case KindNotFound:
		if e.Path != "" {
			return e.Path + " not found"
		}
		return "not found"
	case KindDependencyUnavailable:
		return e.Msg
	case KindMediaProcessing:
		return "media processing failed"
	case KindStorage:
		return "storage unavailable"
	default:
		return "internal error"
	}
}
