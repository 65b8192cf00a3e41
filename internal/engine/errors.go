package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docker/docker/errdefs"
)

// ErrorKind is the engine error taxonomy the rest of clusterdock branches on.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindPredefinedNetwork
	KindHasActiveEndpoints
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindPredefinedNetwork:
		return "pre-defined network"
	case KindHasActiveEndpoints:
		return "has active endpoints"
	default:
		return "engine error"
	}
}

// Error wraps an engine failure with its classified kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a raw client error onto the taxonomy. Message text is only
// consulted where the daemon reports several conditions with the same errdefs class.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	kind := KindOther
	switch {
	case errdefs.IsNotFound(err):
		kind = KindNotFound
	case strings.Contains(msg, "is a pre-defined network and cannot be removed"):
		kind = KindPredefinedNetwork
	case strings.Contains(msg, "has active endpoints"):
		kind = KindHasActiveEndpoints
	case errdefs.IsConflict(err), strings.Contains(msg, "already exists"):
		kind = KindAlreadyExists
	}
	return NewError(kind, op, err)
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

func IsNotFound(err error) bool           { return kindOf(err) == KindNotFound }
func IsAlreadyExists(err error) bool      { return kindOf(err) == KindAlreadyExists }
func IsPredefinedNetwork(err error) bool  { return kindOf(err) == KindPredefinedNetwork }
func IsHasActiveEndpoints(err error) bool { return kindOf(err) == KindHasActiveEndpoints }
