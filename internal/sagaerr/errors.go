// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sagaerr defines the error taxonomy node bodies classify
// their failures into. The execution engine treats every kind except
// Transient as permanent and triggers compensation.
package sagaerr

import (
	"errors"
	"fmt"
)

// Kind classifies a node or remote-call failure.
type Kind int

const (
	// Internal is the zero value: an unexpected invariant violation, fatal.
	Internal Kind = iota
	// NotFound means an entity referenced by id does not exist.
	NotFound
	// Conflict means a generation mismatch on a state-machine transition.
	Conflict
	// ServiceUnavailable means preconditions are temporarily unmet; the
	// operator should retry the saga.
	ServiceUnavailable
	// Invalid means malformed parameters or VCR; fatal, never retried.
	Invalid
	// Transient means a network or infrastructure hiccup; retried in-node.
	Transient
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case ServiceUnavailable:
		return "service_unavailable"
	case Invalid:
		return "invalid"
	case Transient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is a classified error carrying the kind and the node that
// produced it, once attached by the engine.
type Error struct {
	Kind Kind
	Node string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s: %s: %v", e.Node, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error for a given operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFoundf builds a NotFound error.
func NotFoundf(op, format string, args ...any) *Error {
	return New(NotFound, op, fmt.Errorf(format, args...))
}

// Conflictf builds a Conflict error.
func Conflictf(op, format string, args ...any) *Error {
	return New(Conflict, op, fmt.Errorf(format, args...))
}

// ServiceUnavailablef builds a ServiceUnavailable error.
func ServiceUnavailablef(op, format string, args ...any) *Error {
	return New(ServiceUnavailable, op, fmt.Errorf(format, args...))
}

// Invalidf builds an Invalid error.
func Invalidf(op, format string, args ...any) *Error {
	return New(Invalid, op, fmt.Errorf(format, args...))
}

// Transientf builds a Transient error.
func Transientf(op, format string, args ...any) *Error {
	return New(Transient, op, fmt.Errorf(format, args...))
}

// Internalf builds an Internal error.
func Internalf(op, format string, args ...any) *Error {
	return New(Internal, op, fmt.Errorf(format, args...))
}

// WithNode attaches the node name that produced the error.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal if err is
// not a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Internal
}

// IsTransient reports whether err is classified Transient.
func IsTransient(err error) bool { return KindOf(err) == Transient }

// IsNotFound reports whether err is classified NotFound.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsPermanent reports whether err should trigger saga compensation —
// everything except Transient.
func IsPermanent(err error) bool { return err != nil && !IsTransient(err) }

// AsDeleteSuccess remaps NotFound from a delete-like backend call into
// nil, implementing the "delete-if-present" undo contract: a
// compensating delete that finds nothing to delete has still achieved
// its postcondition.
func AsDeleteSuccess(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
