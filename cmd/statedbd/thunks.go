package main

import (
	"github.com/trust-net/go-forkstate/codec"
	"github.com/trust-net/go-forkstate/execution"
	"github.com/trust-net/go-forkstate/statedberr"
	"github.com/trust-net/go-forkstate/thunk"
)

// Native syscall ids this daemon ships pending a real VM: the minimal
// read/write pair that lets a SubmitTransaction payload touch the
// anonymous node's delta chain the way §2's data-flow paragraph describes
// ("reads/writes go through state node -> delta chain -> backend"),
// without requiring contract bytecode.
const (
	syscallPutObject thunk.SyscallID = 1
	syscallGetObject thunk.SyscallID = 2
)

type putObjectArgs struct {
	Space, Key, Value []byte
}

type getObjectArgs struct {
	Space, Key []byte
}

type getObjectResult struct {
	Value []byte
	Found bool
}

// putObjectThunk writes (space, key) = value into the execution context's
// current node and returns the gob-encoded size delta (§4.4).
func putObjectThunk(ctx *execution.Context, ret, arg []byte) (int, error) {
	var args putObjectArgs
	if err := codec.DecodeObject(arg, &args); err != nil {
		return 0, statedberr.New(statedberr.DecodeException, "put_object: malformed argument")
	}
	sizeDelta, err := ctx.CurrentNode.PutObject(args.Space, args.Key, args.Value)
	if err != nil {
		return 0, err
	}
	out, err := codec.EncodeObject(sizeDelta)
	if err != nil {
		return 0, err
	}
	return copy(ret, out), nil
}

// getObjectThunk reads (space, key) from the execution context's current
// node and returns the gob-encoded value/found pair.
func getObjectThunk(ctx *execution.Context, ret, arg []byte) (int, error) {
	var args getObjectArgs
	if err := codec.DecodeObject(arg, &args); err != nil {
		return 0, statedberr.New(statedberr.DecodeException, "get_object: malformed argument")
	}
	value, found := ctx.CurrentNode.GetObject(args.Space, args.Key)
	out, err := codec.EncodeObject(getObjectResult{Value: value, Found: found})
	if err != nil {
		return 0, err
	}
	return copy(ret, out), nil
}

// newHostAPI builds the thunk registry this daemon ships and a dispatch
// resolver with no installed overrides, suitable until a real contract
// deployment path populates system_call_dispatch on the state node.
func newHostAPI() *thunk.HostAPI {
	reg := thunk.NewRegistry()
	reg.Register(syscallPutObject, putObjectThunk)
	reg.Register(syscallGetObject, getObjectThunk)
	return thunk.NewHostAPI(reg, func(thunk.SyscallID) (thunk.Override, bool) {
		return thunk.Override{}, false
	})
}
