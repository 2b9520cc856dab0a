// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nnerr defines the typed error taxonomy used throughout the
// engine (spec §7). All public editing and query APIs that can fail
// return an *Error with one of the Kind values below; *Error carries an
// optional wrapped cause and implements Unwrap, so callers can use
// errors.Is / errors.As.
package nnerr

import "fmt"

// Kind enumerates the engine's failure categories.
type Kind int

const (
	// InvalidID names a node, element, nodespace or partition id that
	// is out of range or not currently live.
	InvalidID Kind = iota
	// InvalidType names an unknown node type or gate/node function selector.
	InvalidType
	// InvalidGateOrSlot names a gate or slot index outside an element's
	// declared range for its node type.
	InvalidGateOrSlot
	// InvalidGroup names a group that does not exist in the requested
	// nodespace, or whose element count does not match an operand.
	InvalidGroup
	// ShapeMismatch names a bulk API call (get/set_link_weights, bulk_set)
	// whose matrix operand shape does not match the row/column index sets.
	ShapeMismatch
	// CapacityExceeded is raised only internally; growth absorbs it before
	// any public call observes it (spec §4.9).
	CapacityExceeded
	// PersistenceMalformed names an archive whose present keys have the
	// wrong shape or dtype; load is aborted.
	PersistenceMalformed
	// PersistenceMissing names an archive missing an optional key; the
	// caller recovers to a default value and logs a warning -- this Kind
	// is informational, never fatal.
	PersistenceMissing
	// CrossPartitionOrderViolation means step 3 of the tick (§4.8) read a
	// source partition's activation before that partition's own
	// propagation (step 2) had completed -- a scheduler programming error.
	CrossPartitionOrderViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidID:
		return "InvalidID"
	case InvalidType:
		return "InvalidType"
	case InvalidGateOrSlot:
		return "InvalidGateOrSlot"
	case InvalidGroup:
		return "InvalidGroup"
	case ShapeMismatch:
		return "ShapeMismatch"
	case CapacityExceeded:
		return "CapacityExceeded"
	case PersistenceMalformed:
		return "PersistenceMalformed"
	case PersistenceMissing:
		return "PersistenceMissing"
	case CrossPartitionOrderViolation:
		return "CrossPartitionOrderViolation"
	default:
		return "Unknown"
	}
}

// Error is the engine's typed error. Kind lets callers branch with
// errors.As without parsing messages; Err (when set) is the wrapped
// underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error wrapping an existing cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
