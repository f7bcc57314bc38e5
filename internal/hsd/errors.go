package hsd

import (
	"errors"
	"fmt"
)

// Kind classifies decode and encode failures.
type Kind uint8

const (
	// CorruptFormat means a tag, pointer or offset is inconsistent with the buffer.
	CorruptFormat Kind = iota + 1
	// TruncatedData means a declared length runs past the end of the data.
	TruncatedData
	// SymbolNotFound means the requested root symbol is absent. Fatal for the file.
	SymbolNotFound
	// AnimationDecodeWarning marks a single malformed animation track. Not fatal.
	AnimationDecodeWarning
	// UnsupportedVariant marks a structurally valid node the decoder does not
	// handle. Fatal for that sub-tree only.
	UnsupportedVariant
)

func (k Kind) String() string {
	switch k {
	case CorruptFormat:
		return "corrupt format"
	case TruncatedData:
		return "truncated data"
	case SymbolNotFound:
		return "symbol not found"
	case AnimationDecodeWarning:
		return "animation decode warning"
	case UnsupportedVariant:
		return "unsupported variant"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Fatal reports whether errors of this kind abort a file import.
func (k Kind) Fatal() bool {
	return k == CorruptFormat || k == TruncatedData || k == SymbolNotFound
}

// Error carries the kind plus file and byte offset context.
type Error struct {
	Kind   Kind
	Path   string
	Offset int64 // data-relative; -1 when unknown
	Msg    string
	Err    error
}

// Sentinels for errors.Is matching on kind.
var (
	ErrCorruptFormat      = &Error{Kind: CorruptFormat, Offset: -1}
	ErrTruncatedData      = &Error{Kind: TruncatedData, Offset: -1}
	ErrSymbolNotFound     = &Error{Kind: SymbolNotFound, Offset: -1}
	ErrAnimationDecode    = &Error{Kind: AnimationDecodeWarning, Offset: -1}
	ErrUnsupportedVariant = &Error{Kind: UnsupportedVariant, Offset: -1}
)

// Errorf builds an *Error at a data offset.
func Errorf(kind Kind, off int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, off int64, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: off, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	s := "hsd: " + e.Kind.String()
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at 0x%x", e.Offset)
	}
	if e.Path != "" {
		s += " in " + e.Path
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return 0
}

// WithPath attaches a file path to err. Anything other than a bare *Error is
// wrapped with the path prefix instead.
func WithPath(err error, path string) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*Error); ok {
		cp := *he
		cp.Path = path
		return &cp
	}
	return fmt.Errorf("hsd: %s: %w", path, err)
}
