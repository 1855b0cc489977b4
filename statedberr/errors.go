// Package statedberr is the tagged error taxonomy of the fork state
// database and execution context. Errors are values, not exceptions -
// callers switch on Code.
package statedberr

import "fmt"

// Code enumerates the error taxonomy of §7.
type Code int

const (
	// NodeFinalized: mutation attempted on a finalized node. Fatal to the txn.
	NodeFinalized Code = iota + 1
	// StackOverflow: push beyond STACK_LIMIT. Abort txn.
	StackOverflow
	// StackException: caller/return/frame access on an empty stack. Internal
	// invariant violation, fatal to the block.
	StackException
	// InsufficientPrivileges: user-mode invoked invoke_thunk. Abort txn.
	InsufficientPrivileges
	// InsufficientReturnBuffer: thunk wrote more than ret_len bytes. Abort txn.
	InsufficientReturnBuffer
	// ThunkNotFound: unknown syscall id and no override. Abort txn.
	ThunkNotFound
	// CannotDiscard: discard of the current head was attempted. Reject, no
	// state change.
	CannotDiscard
	// UnknownPreviousBlock: a block's previous id is not in the fork database.
	UnknownPreviousBlock
	// BlockHeightMismatch: height != previous.height + 1.
	BlockHeightMismatch
	// RootHeightMismatch: a block with a zero-multihash previous does not
	// carry height 1.
	RootHeightMismatch
	// PreviousIdMismatch: block-linking violation on previous id.
	PreviousIdMismatch
	// DecodeException: header bytes did not round-trip canonically.
	DecodeException
	// OutOfResources: resource meter underflow. Abort txn, commit fee.
	OutOfResources
	// UnexpectedState: a registry object was missing expected keys. Fatal.
	UnexpectedState
	// UnknownParent: create_writable_node named an unknown parent id.
	UnknownParent
	// DuplicateNode: create_writable_node named an id already in the index.
	DuplicateNode
	// ParentNotFinalized: create_writable_node's parent delta is not finalized.
	ParentNotFinalized
	// UnknownNode: an operation named an id absent from the fork database.
	UnknownNode
	// TimedOut: a submission's deadline elapsed before it was serviced.
	TimedOut
	// QueueClosed: a submission was made after pipeline shutdown.
	QueueClosed
)

var names = map[Code]string{
	NodeFinalized:            "NodeFinalized",
	StackOverflow:            "StackOverflow",
	StackException:           "StackException",
	InsufficientPrivileges:   "InsufficientPrivileges",
	InsufficientReturnBuffer: "InsufficientReturnBuffer",
	ThunkNotFound:            "ThunkNotFound",
	CannotDiscard:            "CannotDiscard",
	UnknownPreviousBlock:     "UnknownPreviousBlock",
	BlockHeightMismatch:      "BlockHeightMismatch",
	RootHeightMismatch:       "RootHeightMismatch",
	PreviousIdMismatch:       "PreviousIdMismatch",
	DecodeException:          "DecodeException",
	OutOfResources:           "OutOfResources",
	UnexpectedState:          "UnexpectedState",
	UnknownParent:            "UnknownParent",
	DuplicateNode:            "DuplicateNode",
	ParentNotFinalized:       "ParentNotFinalized",
	UnknownNode:              "UnknownNode",
	TimedOut:                 "TimedOut",
	QueueClosed:              "QueueClosed",
}

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the tagged error value used across the state database and
// execution context.
type Error struct {
	code Code
	msg  string
}

func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

func Newf(code Code, format string, args ...interface{}) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Code() Code {
	return e.code
}

// Is reports whether err carries the given code, unwrapping through
// *Error. Safe to call with nil or foreign errors.
func Is(err error, code Code) bool {
	se, ok := err.(*Error)
	return ok && se.code == code
}
