package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindAuthentication
	KindNetwork
	KindDecompression
	KindTranscode
	KindFilesystem
	KindInvalidInput
)

// String returns the name used in log fields and user-facing messages.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindNetwork:
		return "network"
	case KindDecompression:
		return "decompression"
	case KindTranscode:
		return "transcode"
	case KindFilesystem:
		return "filesystem"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every pipeline component.
// Op names the failing operation, Err carries the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s failed", e.Op)
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the Err* sentinels below can be
// used with errors.Is().
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Fatal reports whether the error must abort the whole run.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindNetwork, KindDecompression, KindTranscode, KindFilesystem:
		return false
	default:
		return true
	}
}

// Sentinels for errors.Is() matching.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrDecompression  = &Error{Kind: KindDecompression}
	ErrTranscode      = &Error{Kind: KindTranscode}
	ErrFilesystem     = &Error{Kind: KindFilesystem}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
)

// New creates an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op string, err error) *Error  { return New(KindConfiguration, op, err) }
func Authentication(op string, err error) *Error { return New(KindAuthentication, op, err) }
func Network(op string, err error) *Error        { return New(KindNetwork, op, err) }
func Decompression(op string, err error) *Error  { return New(KindDecompression, op, err) }
func Transcode(op string, err error) *Error      { return New(KindTranscode, op, err) }
func Filesystem(op string, err error) *Error     { return New(KindFilesystem, op, err) }
func InvalidInput(op string, err error) *Error   { return New(KindInvalidInput, op, err) }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// fatalError marks an otherwise recoverable error as fatal, e.g. a network
// failure during the search, when there is no next hit to move on to.
type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// AsFatal returns err marked as fatal. nil stays nil.
func AsFatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err aborts the run. Errors that are not *Error are
// treated as fatal, ErrNotFound never is.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var forced *fatalError
	if errors.As(err, &forced) {
		return true
	}
	if errors.Is(err, &ErrNotFound{}) {
		return false
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fatal()
	}
	return true
}

// ErrNotFound represents an error when a requested resource is not found.
type ErrNotFound struct {
	Resource string
	ID       interface{}
}

// Error implements the error interface.
func (e *ErrNotFound) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s with ID %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is allows for error checking with errors.Is().
func (e *ErrNotFound) Is(target error) bool {
	_, ok := target.(*ErrNotFound)
	return ok
}

// NewSubtitlesNotFoundError creates a specific error for when a search for an
// IMDB id returned no subtitles.
func NewSubtitlesNotFoundError(imdbID string) *ErrNotFound {
	return &ErrNotFound{
		Resource: "subtitles",
		ID:       imdbID,
	}
}
