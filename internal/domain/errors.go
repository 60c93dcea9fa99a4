package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindInsufficientReserved
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInsufficientReserved:
		return "insufficient_reserved"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a classified business error. Its message is safe to return to clients.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) works
// for any not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInsufficientStock    = &Error{Kind: KindInsufficientStock}
	ErrInsufficientReserved = &Error{Kind: KindInsufficientReserved}
	ErrConflict             = &Error{Kind: KindConflict}
)

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientStockf(format string, args ...any) error {
	return &Error{Kind: KindInsufficientStock, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientReservedf(format string, args ...any) error {
	return &Error{Kind: KindInsufficientReserved, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns KindInternal for anything that is not a *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
