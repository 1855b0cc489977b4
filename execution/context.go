// Package execution implements the per-transaction execution context of
// §4.6: call-stack discipline, privilege levels, caller/contract-id
// resolution and resource metering. No globals or thread-locals - every
// thunk receives an explicit *Context.
package execution

import (
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/statedberr"
	"github.com/trust-net/go-forkstate/statenode"
	"github.com/trust-net/go-forkstate/vmbackend"
)

// Privilege is stable on the wire: user code observes these values
// through a syscall (§6).
type Privilege uint8

const (
	UserMode   Privilege = 0
	KernelMode Privilege = 1
)

// Intent is the mode an execution context runs under.
type Intent int

const (
	ApplyBlock Intent = iota
	ApplyTransaction
	ReadOnly
)

// Frame is one call-stack entry. ContractID empty denotes system
// (kernel-origin) (§3).
type Frame struct {
	ContractID    string
	EntryPoint    uint32
	CallArgs      []byte
	CallReturn    []byte
	CallPrivilege Privilege
}

// Block and Transaction are the minimal typed handles the context needs;
// the wire schema they stand for is out of scope (§1: protobuf as opaque
// value objects).
type Block struct {
	ID     []byte
	Height uint64
}

type Transaction struct {
	ID      []byte
	Payload []byte
}

// Context is the execution context of §3/§4.6.
type Context struct {
	Backend     vmbackend.Backend
	CurrentNode *statenode.Node
	ParentNode  *statenode.Node

	Block       *Block
	Transaction *Transaction

	stack      []Frame
	stackLimit int

	intent Intent

	Meter          *ResourceMeter
	Chronicler     Chronicler
	Events         []Event
	Receipt        *Receipt
	PendingConsole []byte

	logger statedblog.Logger
}

// New creates a context bound to current/parent nodes with the given
// stack depth limit (STACK_LIMIT, configurable; default 256) and intent.
func New(current, parent *statenode.Node, stackLimit int, intent Intent) *Context {
	return &Context{
		Backend:     vmbackend.Unavailable{},
		CurrentNode: current,
		ParentNode:  parent,
		stackLimit:  stackLimit,
		intent:      intent,
		Chronicler:  &nopChronicler{},
		logger:      statedblog.NewLogger(Context{}),
	}
}

func (c *Context) Intent() Intent { return c.intent }
func (c *Context) ReadOnly() bool { return c.intent == ReadOnly }
func (c *Context) Depth() int     { return len(c.stack) }

// PushFrame enforces STACK_LIMIT (§4.6), failing with StackOverflow.
func (c *Context) PushFrame(f Frame) error {
	if len(c.stack) >= c.stackLimit {
		return statedberr.New(statedberr.StackOverflow, "push_frame: stack limit exceeded")
	}
	c.stack = append(c.stack, f)
	return nil
}

// PopFrame pops the top frame. Fails with StackException if the stack is
// already empty - an internal invariant violation.
func (c *Context) PopFrame() (Frame, error) {
	if len(c.stack) == 0 {
		return Frame{}, statedberr.New(statedberr.StackException, "pop_frame: empty stack")
	}
	f := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return f, nil
}

// GetCaller returns the contract_id of the frame beneath the top; a
// single-frame stack (kernel origin) yields the empty system id (§4.6).
func (c *Context) GetCaller() string {
	if len(c.stack) < 2 {
		return ""
	}
	return c.stack[len(c.stack)-2].ContractID
}

// GetContractID scans from the top downward for the nearest non-empty
// contract_id; empty if none is found (§4.6).
func (c *Context) GetContractID() string {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].ContractID != "" {
			return c.stack[i].ContractID
		}
	}
	return ""
}

// GetPrivilege returns the top frame's privilege. Fails with
// StackException on an empty stack.
func (c *Context) GetPrivilege() (Privilege, error) {
	if len(c.stack) == 0 {
		return 0, statedberr.New(statedberr.StackException, "get_privilege: empty stack")
	}
	return c.stack[len(c.stack)-1].CallPrivilege, nil
}

// GetCallerPrivilege is the privilege one below the top, defaulting to
// kernel-mode when there is no frame beneath (§4.6).
func (c *Context) GetCallerPrivilege() Privilege {
	if len(c.stack) < 2 {
		return KernelMode
	}
	return c.stack[len(c.stack)-2].CallPrivilege
}

// MakeSession creates a resource session with an initial compute_bandwidth
// budget rc and installs it as the context's Meter. The Chronicler is not
// attached to the session and does not observe it.
func (c *Context) MakeSession(rc int64) *ResourceMeter {
	c.Meter = NewResourceMeter(rc)
	return c.Meter
}

// Event is an emitted application event, opaque beyond name/data - the
// wire schema for event payloads is out of scope (§1).
type Event struct {
	Name string
	Data []byte
}

// Receipt accumulates the per-transaction outcome: bandwidth consumed and
// emitted events, mirroring what a block-acceptance response needs.
type Receipt struct {
	BandwidthUsed int64
	Events        []Event
}

// Chronicler records state-access trace events; exact shape is left to
// the caller, wired as an interface so a no-op observer backs tests.
type Chronicler interface {
	RecordAccess(space, key []byte, wrote bool)
}

type nopChronicler struct{}

func (*nopChronicler) RecordAccess(space, key []byte, wrote bool) {}
