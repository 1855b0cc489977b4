// Package thunk implements the host API of §4.7: a native thunk registry
// and the invoke_thunk / invoke_system_call dispatch rule, expressed as
// two explicit registries instead of macro-generated namespaces.
package thunk

import (
	"encoding/binary"

	"github.com/trust-net/go-forkstate/codec"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/statedberr"
	"github.com/trust-net/go-forkstate/statenode"

	"github.com/trust-net/go-forkstate/execution"
)

// SyscallID identifies a thunk or system-call slot.
type SyscallID uint32

// Fn is a registered native thunk. It reads its arguments from arg,
// writes at most len(ret) bytes into ret and returns the count written.
type Fn func(ctx *execution.Context, ret, arg []byte) (int, error)

// Override is what system_call_dispatch may hold for a syscall id: either
// a thunk-id override or a (contract_id, entry_point) bundle (§4.7 steps
// 3-4).
type Override struct {
	ThunkOverride SyscallID
	HasThunk      bool
	ContractID    string
	EntryPoint    uint32
	HasBundle     bool
}

// dispatchSpace is the reserved object space name for system_call_dispatch
// (§6).
const dispatchSpace = "system_call_dispatch"

// invokeSystemCallFrame is the synthetic contract_id pushed, after the
// dispatch-space lookup, around the pass-through/override thunk call, so a
// thunk reached through invoke_system_call sees this marker as its
// contract id and the real caller one frame further down, rather than
// being called as if it were the caller itself.
const invokeSystemCallFrame = "invoke_system_call"

// DispatchKey is the 32-bit big-endian encoding of sid used as the key
// inside system_call_dispatch (§6).
func DispatchKey(sid SyscallID) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(sid))
	return buf
}

// Registry is the native thunk table, populated once at startup.
type Registry struct {
	thunks map[SyscallID]Fn
	logger statedblog.Logger
}

func NewRegistry() *Registry {
	return &Registry{thunks: make(map[SyscallID]Fn), logger: statedblog.NewLogger(Registry{})}
}

// Register installs fn under id, replacing any prior registration.
func (r *Registry) Register(id SyscallID, fn Fn) {
	r.thunks[id] = fn
}

// HostAPI exposes invoke_thunk and invoke_system_call to the VM.
type HostAPI struct {
	registry *Registry
	// resolve reads system_call_dispatch[sid] from the current state view.
	// The lookup is a function value rather than a fixed statenode read,
	// so tests can substitute a plain map; ResolveFromNode builds the
	// state-backed one.
	resolve func(sid SyscallID) (Override, bool)
	logger  statedblog.Logger
}

func NewHostAPI(registry *Registry, resolve func(sid SyscallID) (Override, bool)) *HostAPI {
	return &HostAPI{registry: registry, resolve: resolve, logger: statedblog.NewLogger(HostAPI{})}
}

// ResolveFromNode reads system_call_dispatch[sid] off node's current state
// view, gob-decoding the stored Override (§6). Production callers wire this
// in as the resolve function instead of a test-only map.
func ResolveFromNode(node *statenode.Node) func(sid SyscallID) (Override, bool) {
	return func(sid SyscallID) (Override, bool) {
		raw, found := node.GetObject([]byte(dispatchSpace), DispatchKey(sid))
		if !found {
			return Override{}, false
		}
		var override Override
		if err := codec.DecodeObject(raw, &override); err != nil {
			return Override{}, false
		}
		return override, true
	}
}

// InvokeThunk executes the registered thunk directly. Callable only from
// kernel-mode frames (§4.7); fails with InsufficientPrivileges otherwise.
func (h *HostAPI) InvokeThunk(ctx *execution.Context, tid SyscallID, ret, arg []byte) (int, error) {
	priv, err := ctx.GetPrivilege()
	if err != nil {
		return 0, err
	}
	if priv != execution.KernelMode {
		return 0, statedberr.New(statedberr.InsufficientPrivileges, "invoke_thunk requires kernel-mode")
	}
	return h.execute(ctx, tid, ret, arg)
}

func (h *HostAPI) execute(ctx *execution.Context, tid SyscallID, ret, arg []byte) (int, error) {
	fn, ok := h.registry.thunks[tid]
	if !ok {
		return 0, statedberr.New(statedberr.ThunkNotFound, "no thunk registered")
	}
	n, err := fn(ctx, ret, arg)
	if err != nil {
		return 0, err
	}
	if n > len(ret) {
		return 0, statedberr.New(statedberr.InsufficientReturnBuffer, "thunk wrote past ret_len")
	}
	return n, nil
}

// InvokeSystemCall implements the four-step resolution rule of §4.7.
func (h *HostAPI) InvokeSystemCall(ctx *execution.Context, sid SyscallID, ret, arg []byte) (int, error) {
	override, found := h.resolve(sid)
	if !found || override.HasThunk {
		priv, err := ctx.GetPrivilege()
		if err != nil {
			return 0, err
		}
		if err := ctx.PushFrame(execution.Frame{ContractID: invokeSystemCallFrame, CallPrivilege: priv}); err != nil {
			return 0, err
		}
		defer ctx.PopFrame()

		if !found {
			// step 2: pass-through to thunk sid under caller's current privilege.
			return h.execute(ctx, sid, ret, arg)
		}
		// step 3: override to a different thunk id, same privilege.
		return h.execute(ctx, override.ThunkOverride, ret, arg)
	}
	if override.HasBundle {
		// step 4: push a kernel-mode frame and re-enter the VM.
		if err := ctx.PushFrame(execution.Frame{
			ContractID:    override.ContractID,
			EntryPoint:    override.EntryPoint,
			CallArgs:      arg,
			CallPrivilege: execution.KernelMode,
		}); err != nil {
			return 0, err
		}
		defer ctx.PopFrame()

		out, err := ctx.Backend.CallContract(override.ContractID, override.EntryPoint, uint8(execution.KernelMode), arg)
		if err != nil {
			return 0, err
		}
		if len(out) > len(ret) {
			return 0, statedberr.New(statedberr.InsufficientReturnBuffer, "contract wrote past ret_len")
		}
		copy(ret, out)
		return len(out), nil
	}
	return 0, statedberr.New(statedberr.UnexpectedState, "system_call_dispatch entry has neither thunk nor bundle")
}
