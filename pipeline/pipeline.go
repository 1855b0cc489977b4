// Package pipeline implements the three-stage submission scheduling model
// of §5: a bounded input queue, a feed stage that applies deadline/
// ordering policy, and worker goroutine(s) that invoke the state database
// and resolve futures. The three stages are connected by channels and
// supervised with golang.org/x/sync/errgroup.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trust-net/go-forkstate/codec"
	"github.com/trust-net/go-forkstate/execution"
	"github.com/trust-net/go-forkstate/forkdb"
	statedblog "github.com/trust-net/go-forkstate/log"
	"github.com/trust-net/go-forkstate/mq"
	"github.com/trust-net/go-forkstate/multihash"
	"github.com/trust-net/go-forkstate/statedberr"
	"github.com/trust-net/go-forkstate/thunk"
)

// keccak256Codec is the multicodec identifier for Keccak-256, used to
// wrap go-ethereum's block-id digest into a multihash.ID.
const keccak256Codec = 0x1b

// defaultStackLimit mirrors config.Defaults().StackLimit (§4.6's
// STACK_LIMIT), restated here so a controller built without SetHostAPI
// still runs transactions under a sane call-stack depth.
const defaultStackLimit = 256

// Kind distinguishes the three submission request shapes of §6.
type Kind int

const (
	KindBlock Kind = iota
	KindTransaction
	KindQuery
)

// BlockRequest is SubmitBlock{header, transactions, passives} (§6).
type BlockRequest struct {
	HeaderBytes  []byte
	Transactions [][]byte
	Passives     [][]byte
}

// TransactionRequest is SubmitTransaction{payload} (§6).
type TransactionRequest struct {
	Payload []byte
}

// QueryRequest is SubmitQuery{...}; scoped here to a read of one object
// off the current head, the shape every other query specializes.
type QueryRequest struct {
	Space, Key []byte
}

// Result is the typed result union {Block, Transaction, Query, Error}.
type Result struct {
	Block       *BlockResult
	Transaction *TransactionResult
	Query       *QueryResult
	Err         error
}

type BlockResult struct {
	ID       multihash.ID
	Revision uint64
}

type TransactionResult struct {
	Accepted bool
}

type QueryResult struct {
	Value []byte
	Found bool
}

// Future resolves at most once, with the operation's Result or with a
// TimedOut error once its deadline has passed. A submission still queued
// when the controller shuts down is never resolved.
type Future struct {
	ch   chan Result
	once sync.Once
}

func newFuture() *Future {
	return &Future{ch: make(chan Result, 1)}
}

func (f *Future) resolve(r Result) {
	f.once.Do(func() { f.ch <- r; close(f.ch) })
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type submission struct {
	id       uuid.UUID
	kind     Kind
	block    *BlockRequest
	txn      *TransactionRequest
	query    *QueryRequest
	deadline time.Time
	future   *Future
}

// Controller drives the submission pipeline of §5.
type Controller struct {
	fork       *forkdb.ForkDB
	mu         sync.Mutex // serializes every mutation touching the fork database (§5)
	input      chan *submission
	work       chan *submission
	closed     chan struct{}
	closeOn    sync.Once
	publisher  mq.Publisher
	hostAPI    *thunk.HostAPI
	stackLimit int
	logger     statedblog.Logger
}

// New creates a controller with the given bounded queue capacity
// (MAX_QUEUE_SIZE, default 1024). Accept events are discarded unless
// SetPublisher is called with a real broker connection. Transactions are
// rejected unless SetHostAPI wires a real thunk registry.
func New(fork *forkdb.ForkDB, maxQueueSize int) *Controller {
	return &Controller{
		fork:      fork,
		input:     make(chan *submission, maxQueueSize),
		work:      make(chan *submission, maxQueueSize),
		closed:    make(chan struct{}),
		publisher: mq.NopPublisher{},
		hostAPI: thunk.NewHostAPI(thunk.NewRegistry(), func(thunk.SyscallID) (thunk.Override, bool) {
			return thunk.Override{}, false
		}),
		stackLimit: defaultStackLimit,
		logger:     statedblog.NewLogger(Controller{}),
	}
}

// SetPublisher wires a message-bus publisher for block/transaction
// accept events (§6).
func (c *Controller) SetPublisher(p mq.Publisher) {
	c.publisher = p
}

// SetHostAPI wires the thunk dispatcher SubmitTransaction applies payloads
// through, along with the execution context's call-stack depth limit
// (§4.6's STACK_LIMIT). Without a call to SetHostAPI, every transaction is
// dispatched against an empty registry and rejected with ThunkNotFound.
func (c *Controller) SetHostAPI(api *thunk.HostAPI, stackLimit int) {
	c.hostAPI = api
	c.stackLimit = stackLimit
}

// Run starts the feed stage and workerCount worker goroutines, blocking
// until ctx is cancelled or a fatal error occurs.
func (c *Controller) Run(ctx context.Context, workerCount int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.feed(ctx) })
	for i := 0; i < workerCount; i++ {
		g.Go(func() error { return c.worker(ctx) })
	}
	err := g.Wait()
	c.closeOn.Do(func() { close(c.closed) })
	return err
}

// feed applies scheduling policy: submissions past their deadline are
// dropped with TimedOut instead of reaching a worker (§5). Submissions
// for the same block parent are already processed in submission order
// because both channels are FIFO.
func (c *Controller) feed(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-c.input:
			if !ok {
				return nil
			}
			if !s.deadline.IsZero() && time.Now().After(s.deadline) {
				s.future.resolve(Result{Err: statedberr.New(statedberr.TimedOut, "submission deadline elapsed")})
				continue
			}
			select {
			case c.work <- s:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Controller) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-c.work:
			if !ok {
				return nil
			}
			c.serve(s)
		}
	}
}

func (c *Controller) serve(s *submission) {
	var op func() Result
	switch s.kind {
	case KindBlock:
		op = func() Result { return c.applyBlock(s.block) }
	case KindTransaction:
		op = func() Result { return c.applyTransaction(s.txn) }
	case KindQuery:
		op = func() Result { return c.applyQuery(s.query) }
	}
	s.future.resolve(runBounded(s.deadline, op))
}

// runBounded races op's completion against deadline using a timer and a
// done-channel select. Per §5, in-flight work that loses the race is not
// interrupted - it keeps running and its result is simply discarded.
func runBounded(deadline time.Time, op func() Result) Result {
	if deadline.IsZero() {
		return op()
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return Result{Err: statedberr.New(statedberr.TimedOut, "submission deadline elapsed")}
	}
	done := make(chan Result, 1)
	go func() { done <- op() }()
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case r := <-done:
		return r
	case <-timer.C:
		return Result{Err: statedberr.New(statedberr.TimedOut, "submission deadline elapsed")}
	}
}

// submit enqueues s, returning QueueClosed once the controller has shut
// down, including while it is blocked on a full queue.
func (c *Controller) submit(s *submission) (*Future, error) {
	select {
	case <-c.closed:
		return nil, statedberr.New(statedberr.QueueClosed, "controller is shut down")
	default:
	}
	s.future = newFuture()
	select {
	case c.input <- s:
		return s.future, nil
	case <-c.closed:
		return nil, statedberr.New(statedberr.QueueClosed, "controller is shut down")
	}
}

// SubmitBlock enqueues a block for validation and application (§6).
func (c *Controller) SubmitBlock(req BlockRequest, deadline time.Time) (*Future, error) {
	return c.submit(&submission{id: uuid.New(), kind: KindBlock, block: &req, deadline: deadline})
}

// SubmitTransaction enqueues a transaction payload.
func (c *Controller) SubmitTransaction(req TransactionRequest, deadline time.Time) (*Future, error) {
	return c.submit(&submission{id: uuid.New(), kind: KindTransaction, txn: &req, deadline: deadline})
}

// SubmitQuery enqueues a read-only lookup against the current head.
func (c *Controller) SubmitQuery(req QueryRequest, deadline time.Time) (*Future, error) {
	return c.submit(&submission{id: uuid.New(), kind: KindQuery, query: &req, deadline: deadline})
}

// applyBlock enforces the block-acceptance rules of §6, then creates and
// finalizes the new node. It never commits it; any commit_node decision
// is left to a later caller.
func (c *Controller) applyBlock(req *BlockRequest) Result {
	header, err := codec.DecodeHeader(req.HeaderBytes)
	if err != nil {
		return Result{Err: err}
	}
	if err := codec.VerifyRoundTrip(req.HeaderBytes); err != nil {
		return Result{Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previousID, err := multihash.FromBytes(header.Previous)
	if err != nil {
		return Result{Err: statedberr.New(statedberr.DecodeException, "malformed previous id")}
	}

	if previousID.IsZero() {
		if header.Height != 1 {
			return Result{Err: statedberr.New(statedberr.RootHeightMismatch, "genesis block must carry height 1")}
		}
	} else {
		prevNode, ok := c.fork.GetNode(previousID)
		if !ok {
			return Result{Err: statedberr.New(statedberr.UnknownPreviousBlock, "previous block not in fork database")}
		}
		if header.Height != prevNode.Revision()+1 {
			return Result{Err: statedberr.New(statedberr.BlockHeightMismatch, "height is not previous.height + 1")}
		}
	}

	blockID, err := deriveBlockID(req.HeaderBytes)
	if err != nil {
		return Result{Err: err}
	}

	node, err := c.fork.CreateWritableNode(previousID, blockID)
	if err != nil {
		return Result{Err: err}
	}
	node.Finalize()
	if err := c.fork.FinalizeNode(blockID); err != nil {
		return Result{Err: err}
	}

	if err := c.publisher.PublishBlockAccept(context.Background(), blockID.Bytes()); err != nil {
		c.logger.Warn("publish block accept event failed: %v", err)
	}
	return Result{Block: &BlockResult{ID: blockID, Revision: node.Revision()}}
}

// deriveBlockID wraps go-ethereum's Keccak256 digest of the canonical
// header bytes into a multihash id.
func deriveBlockID(headerBytes []byte) (multihash.ID, error) {
	digest := crypto.Keccak256(headerBytes)
	return multihash.FromDigest(digest, keccak256Codec)
}

// transactionCall is the shape a transaction payload gob-decodes to in
// the absence of a VM able to run arbitrary contract bytecode: a direct
// invoke_system_call against the anonymous node opened off the current
// head, the one path cmd/statedbd can actually exercise today.
type transactionCall struct {
	SyscallID thunk.SyscallID
	Arg       []byte
	RetLen    int
}

// applyTransaction opens an anonymous node off the current head (§4.4),
// builds an execution context over it (§4.6) and dispatches the payload
// through the host API's invoke_system_call (§4.7). The anonymous node is
// never committed back into head: head nodes are always finalized by the
// time applyBlock makes them the fork database's head, and §4.4 forbids
// commit into a finalized parent - so this is a speculative application
// gate, the same role a mempool admission check plays, not a state
// mutation. A transaction actually lands in chain state when it's
// included in a block's own pre-finalize node.
func (c *Controller) applyTransaction(req *TransactionRequest) Result {
	var call transactionCall
	if err := codec.DecodeObject(req.Payload, &call); err != nil {
		return Result{Transaction: &TransactionResult{Accepted: false}}
	}

	c.mu.Lock()
	head := c.fork.GetHead()
	anon := head.CreateAnonymousNode()
	c.mu.Unlock()

	ctx := execution.New(anon, head, c.stackLimit, execution.ApplyTransaction)
	if err := ctx.PushFrame(execution.Frame{CallPrivilege: execution.UserMode}); err != nil {
		return Result{Transaction: &TransactionResult{Accepted: false}}
	}

	ret := make([]byte, call.RetLen)
	_, err := c.hostAPI.InvokeSystemCall(ctx, call.SyscallID, ret, call.Arg)
	accepted := err == nil
	if !accepted {
		c.logger.Warn("transaction rejected: %v", err)
	} else if err := c.publisher.PublishTransactionAccept(context.Background(), req.Payload); err != nil {
		c.logger.Warn("publish transaction accept event failed: %v", err)
	}
	return Result{Transaction: &TransactionResult{Accepted: accepted}}
}

func (c *Controller) applyQuery(req *QueryRequest) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	head := c.fork.GetHead()
	v, found := head.GetObject(req.Space, req.Key)
	return Result{Query: &QueryResult{Value: v, Found: found}}
}
