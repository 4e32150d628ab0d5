// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package core

// Error is our own defined error type, used in place of the 'error'
// interface wherever a failure is an expected, recoverable outcome rather
// than an exceptional one. No failure mode in this simulator is fatal; every
// component reports one of these and the protocol driver turns it into the
// well-defined output spec.md §7 describes.
type Error int

const (
	// NoError means no error.
	NoError = Error(iota)

	// ErrBadInput describes a numeric field out of the range the header
	// declared. No component returns it: the protocol layer does not
	// range-check fields, and a batch field that fails to parse is logged and
	// read as 0.
	ErrBadInput

	// ErrDuplicateObjectID is returned when a write names an object ID that
	// is already live.
	ErrDuplicateObjectID

	// ErrNoSpace is returned when no replica placement tier (direct,
	// correlated, anywhere) can find room for an object.
	ErrNoSpace

	// ErrUnknownObject is returned by objectstore.Store.Delete when the object
	// ID does not currently exist. Reads naming a missing object are dropped
	// without an error value.
	ErrUnknownObject

	// ErrSchedulerStall names the case where a disk has no budget or no
	// pending targets left to plan for this step. headscheduler's Step does
	// not return it; that case yields an empty action list.
	ErrSchedulerStall

	// ErrInvalidArgument is returned for malformed internal arguments: a
	// non-positive size, or a size larger than V passed to
	// DiskMap.AllocateAnywhere.
	ErrInvalidArgument
)

var description = map[Error]string{
	NoError:               "no error",
	ErrBadInput:           "numeric field out of declared range",
	ErrDuplicateObjectID:  "object id already exists",
	ErrNoSpace:            "no placement tier had room for this object",
	ErrUnknownObject:      "object id does not exist",
	ErrSchedulerStall:     "disk has no budget or no pending targets",
	ErrInvalidArgument:    "invalid argument",
}

// String returns a human readable error message.
func (e Error) String() string {
	if s, ok := description[e]; ok {
		return s
	}
	return "unknown error"
}

// Error implements the 'error' interface so an Error can be passed anywhere
// a plain error is expected (logging, %v, wrapping); NoError stringifies
// rather than vanishing, since callers are expected to check against
// NoError explicitly instead of nil.
func (e Error) Error() string {
	return e.String()
}
