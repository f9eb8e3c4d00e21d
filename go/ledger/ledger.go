// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ledger provides a reference ledger applying the journals produced
// by a processor to an in-memory state. It owns the dispatch queue, the
// waitlist, user mailboxes and the task scheduler, and runs blocks on top of
// them. Blocks are atomic: if processing fails, all of its modifications are
// reverted.
//
// A Ledger is not safe for concurrent use.
package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/scheduler"
	"github.com/Fantom-foundation/Sable/go/wasm"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/maps"
)

const (
	ErrUnknownCode         = sable.ConstError("unknown code")
	ErrProgramExists       = sable.ConstError("program already exists")
	ErrNotAUser            = sable.ConstError("actor is a program")
	ErrInsufficientBalance = sable.ConstError("insufficient balance")
	ErrBalanceOverflow     = sable.ConstError("balance overflow")
	ErrNotInMailbox        = sable.ConstError("message not in mailbox")
	ErrInvalidJournal      = sable.ConstError("invalid journal")
	ErrGasLimitTooHigh     = sable.ConstError("gas limit exceeds block gas limit")
)

// TimeoutReplyCode is the exit code of replies sent on behalf of programs
// whose waiting messages expired.
const TimeoutReplyCode = 2

// Config configures a ledger. A zero gas limit or timeout is replaced by its
// default value.
type Config struct {
	BlockGasLimit   sable.Gas `json:"blockGasLimit"`
	DefaultGasLimit sable.Gas `json:"defaultGasLimit"` // < for messages without gas limit
	MailboxTimeout  uint32    `json:"mailboxTimeout"`  // < blocks a message stays in a mailbox
	BlockTime       uint64    `json:"blockTime"`       // < in milliseconds

	Logger     *zap.Logger           `json:"-"`
	Registerer prometheus.Registerer `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		BlockGasLimit:   1 << 40,
		DefaultGasLimit: 1 << 34,
		MailboxTimeout:  1000,
		BlockTime:       1000,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BlockGasLimit == 0 {
		c.BlockGasLimit = defaults.BlockGasLimit
	}
	if c.DefaultGasLimit == 0 {
		c.DefaultGasLimit = defaults.DefaultGasLimit
	}
	c.DefaultGasLimit = min(c.DefaultGasLimit, c.BlockGasLimit)
	if c.MailboxTimeout == 0 {
		c.MailboxTimeout = defaults.MailboxTimeout
	}
	if c.BlockTime == 0 {
		c.BlockTime = defaults.BlockTime
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Program is the ledger's view of a deployed program.
type Program struct {
	CodeId      sable.CodeId
	MemoryPages sable.WasmPageNumber
	Allocations []sable.WasmPageNumber
	Initialized bool
	Terminated  bool
}

type code struct {
	binary      []byte
	memoryPages sable.WasmPageNumber
}

type Ledger struct {
	processor sable.Processor
	pages     PageStore
	config    Config
	logger    *zap.Logger
	metrics   *metrics

	height uint64
	seed   [32]byte
	nonce  uint32

	codes    map[sable.CodeId]code
	programs map[sable.ActorId]Program
	balances map[sable.ActorId]sable.Value
	queue    *queue
	waitlist map[sable.MessageId]sable.StoredDispatch
	mailbox  map[sable.ActorId][]sable.Message
	tasks    *scheduler.Scheduler
}

// New creates an empty ledger at height 0 processing dispatches with the
// given processor and keeping program memory in the given store.
func New(processor sable.Processor, pages PageStore, config Config) *Ledger {
	config = config.withDefaults()
	return &Ledger{
		processor: processor,
		pages:     pages,
		config:    config,
		logger:    config.Logger,
		metrics:   newMetrics(config.Registerer),
		codes:     map[sable.CodeId]code{},
		programs:  map[sable.ActorId]Program{},
		balances:  map[sable.ActorId]sable.Value{},
		queue:     newQueue(),
		waitlist:  map[sable.MessageId]sable.StoredDispatch{},
		mailbox:   map[sable.ActorId][]sable.Message{},
		tasks:     scheduler.New(),
	}
}

// UploadCode registers the given WASM binary and returns its id. Uploading
// the same code twice is not an error.
func (l *Ledger) UploadCode(bytecode []byte) (sable.CodeId, error) {
	module, err := wasm.Decode(bytecode)
	if err != nil {
		return sable.CodeId{}, err
	}
	var pages sable.WasmPageNumber
	for _, imp := range module.Imports {
		if imp.Kind == wasm.ExternMemory {
			pages = sable.WasmPageNumber(imp.Limits.Min)
		}
	}
	for _, limits := range module.Memories {
		pages = sable.WasmPageNumber(limits.Min)
	}
	id := sable.GenerateCodeId(bytecode)
	l.codes[id] = code{binary: bytes.Clone(bytecode), memoryPages: pages}
	return id, nil
}

// Mint adds the given value to the balance of an actor.
func (l *Ledger) Mint(actor sable.ActorId, value sable.Value) error {
	return l.credit(actor, value, nil)
}

// Send submits a handle message from a user. The value is taken from the
// user's balance immediately. A nil gas limit selects the default limit.
func (l *Ledger) Send(
	from, to sable.ActorId,
	payload []byte,
	value sable.Value,
	gasLimit *sable.Gas,
) (sable.MessageId, error) {
	return l.submit(sable.Handle, from, to, payload, value, gasLimit, nil)
}

// SendReply answers a message in the mailbox of a user. The answered
// message is removed from the mailbox.
func (l *Ledger) SendReply(
	from sable.ActorId,
	replyTo sable.MessageId,
	payload []byte,
	value sable.Value,
	gasLimit *sable.Gas,
) (sable.MessageId, error) {
	messages := l.mailbox[from]
	pos := slices.IndexFunc(messages, func(m sable.Message) bool { return m.Id == replyTo })
	if pos < 0 {
		return sable.MessageId{}, fmt.Errorf("%w: %v", ErrNotInMailbox, replyTo)
	}
	original := messages[pos]
	if original.IsReply() {
		return sable.MessageId{}, fmt.Errorf("%w: %v is a reply", ErrNotInMailbox, replyTo)
	}
	id, err := l.submit(sable.Reply, from, original.Source, payload, value, gasLimit, &sable.ReplyDetails{ReplyTo: replyTo})
	if err != nil {
		return sable.MessageId{}, err
	}
	l.removeFromMailbox(from, replyTo, nil)
	l.tasks.Cancel(scheduler.Task{Kind: scheduler.RemoveFromMailbox, Actor: from, Message: replyTo})
	return id, nil
}

// CreateProgram submits the initialization of a new program with the given
// code. The program exists from this call on, it gets initialized once its
// init message is processed.
func (l *Ledger) CreateProgram(
	from sable.ActorId,
	codeId sable.CodeId,
	salt []byte,
	payload []byte,
	value sable.Value,
	gasLimit *sable.Gas,
) (sable.ActorId, sable.MessageId, error) {
	code, found := l.codes[codeId]
	if !found {
		return sable.ActorId{}, sable.MessageId{}, fmt.Errorf("%w: %v", ErrUnknownCode, codeId)
	}
	program := sable.GenerateProgramId(codeId, salt)
	if _, found := l.programs[program]; found {
		return sable.ActorId{}, sable.MessageId{}, fmt.Errorf("%w: %v", ErrProgramExists, program)
	}
	id, err := l.submit(sable.Init, from, program, payload, value, gasLimit, nil)
	if err != nil {
		return sable.ActorId{}, sable.MessageId{}, err
	}
	l.programs[program] = Program{CodeId: codeId, MemoryPages: code.memoryPages}
	return program, id, nil
}

func (l *Ledger) submit(
	kind sable.DispatchKind,
	from, to sable.ActorId,
	payload []byte,
	value sable.Value,
	gasLimit *sable.Gas,
	reply *sable.ReplyDetails,
) (sable.MessageId, error) {
	if _, found := l.programs[from]; found {
		return sable.MessageId{}, fmt.Errorf("%w: %v", ErrNotAUser, from)
	}
	if gasLimit != nil && *gasLimit > l.config.BlockGasLimit {
		return sable.MessageId{}, fmt.Errorf("%w: %d > %d", ErrGasLimitTooHigh, *gasLimit, l.config.BlockGasLimit)
	}
	if err := l.debit(from, value, nil); err != nil {
		return sable.MessageId{}, err
	}
	var id sable.MessageId
	if reply != nil {
		id = sable.GenerateReply(reply.ReplyTo, reply.ExitCode)
	} else {
		id = sable.GenerateOutgoing(sable.MessageId(from), l.nonce)
		l.nonce++
	}
	message := sable.Message{
		Id:          id,
		Source:      from,
		Destination: to,
		Payload:     bytes.Clone(payload),
		Value:       value,
		Reply:       reply,
	}
	if gasLimit != nil {
		limit := *gasLimit
		message.GasLimit = &limit
	}
	l.queue.PushBack(sable.StoredDispatch{Dispatch: sable.Dispatch{Kind: kind, Message: message}})
	return id, nil
}

// BlockSummary describes the effects of a processed block.
type BlockSummary struct {
	Height     uint64
	Dispatches []DispatchResult
	Delivered  []sable.MessageId // < messages moved to user mailboxes
	Expired    []sable.MessageId // < messages removed from the waitlist
	GasBurned  sable.Gas
	Stopped    bool     // < the allowance was exhausted before the queue was empty
	Hash       [32]byte // < hash of the journals of the block
}

// DispatchResult summarizes the journal of a single dispatch.
type DispatchResult struct {
	MessageId sable.MessageId
	Program   sable.ActorId
	Outcome   sable.DispatchOutcome // < only valid if not waiting
	Waiting   bool
	GasBurned sable.Gas
	Trap      *sable.TrapExplanation
}

// RunBlock processes the next block. Due tasks are run first, afterwards
// queued dispatches are processed until the queue is empty or the block gas
// limit is exhausted. On error, the ledger remains in the state before the
// block.
func (l *Ledger) RunBlock() (BlockSummary, error) {
	height := l.height + 1
	block := sable.BlockInfo{
		Height:     height,
		Timestamp:  height * l.config.BlockTime,
		RandomSeed: nextSeed(l.seed, height),
	}

	undo := &undoLog{}
	tasks := l.tasks.Clone()
	summary, err := l.runBlock(block, undo)
	if err != nil {
		l.tasks = tasks
		if rollbackErr := undo.rollback(); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to roll back block %d: %w", height, rollbackErr))
		}
		l.metrics.rollbacks.Inc()
		l.logger.Warn("block discarded", zap.Uint64("height", height), zap.Error(err))
		return BlockSummary{}, err
	}

	l.height = height
	l.seed = block.RandomSeed
	l.metrics.observe(l, summary)
	l.logger.Info("block processed",
		zap.Uint64("height", height),
		zap.Int("dispatches", len(summary.Dispatches)),
		zap.Int("delivered", len(summary.Delivered)),
		zap.Uint64("gas", uint64(summary.GasBurned)),
		zap.Bool("stopped", summary.Stopped),
		zap.Int("queue", l.queue.Len()),
		zap.Int("waitlist", len(l.waitlist)),
	)
	return summary, nil
}

// RunUntilIdle runs blocks until the queue is empty, but at most the given
// number of blocks.
func (l *Ledger) RunUntilIdle(maxBlocks int) ([]BlockSummary, error) {
	var res []BlockSummary
	for i := 0; i < maxBlocks; i++ {
		summary, err := l.RunBlock()
		if err != nil {
			return res, err
		}
		res = append(res, summary)
		if l.queue.Len() == 0 {
			break
		}
	}
	return res, nil
}

func (l *Ledger) runBlock(block sable.BlockInfo, undo *undoLog) (BlockSummary, error) {
	summary := BlockSummary{Height: block.Height}
	for _, task := range l.tasks.Drain(block.Height) {
		if err := l.runTask(block, task, &summary, undo); err != nil {
			return summary, fmt.Errorf("failed to run task %v: %w", task, err)
		}
	}

	hasher, _ := blake2b.New256(nil) // only fails for invalid keys
	allowance := l.config.BlockGasLimit
	for l.queue.Len() > 0 {
		dispatch := l.queue.PopFront()
		undo.recordFunc(func() { l.queue.PushFront(dispatch) })

		destination := dispatch.Message.Destination
		program, found := l.programs[destination]
		if !found {
			if err := l.deliver(block, dispatch.Message, undo); err != nil {
				return summary, err
			}
			summary.Delivered = append(summary.Delivered, dispatch.Message.Id)
			continue
		}

		journal, err := l.processor.Process(block, l.incoming(dispatch), l.actorState(destination, program), l.pages, allowance)
		if err != nil {
			return summary, fmt.Errorf("failed to process message %v: %w", dispatch.Message.Id, err)
		}
		if len(journal.Filter(sable.NoteProcessingStopped)) > 0 {
			l.queue.PushFront(dispatch)
			undo.recordFunc(func() { l.queue.PopFront() })
			summary.Stopped = true
			break
		}

		result, err := l.apply(block, journal, undo)
		if err != nil {
			return summary, fmt.Errorf("failed to apply journal of message %v: %w", dispatch.Message.Id, err)
		}
		hash, err := journal.Hash()
		if err != nil {
			return summary, err
		}
		hasher.Write(hash[:])
		summary.Dispatches = append(summary.Dispatches, result)
		summary.GasBurned += result.GasBurned
		if result.GasBurned >= allowance {
			allowance = 0
		} else {
			allowance -= result.GasBurned
		}
	}
	copy(summary.Hash[:], hasher.Sum(nil))
	return summary, nil
}

// incoming prepares a stored dispatch for processing. Gas limits are capped
// at the block gas limit, so a dispatch at the head of a block can always
// complete or trap instead of being stopped by the allowance.
func (l *Ledger) incoming(dispatch sable.StoredDispatch) sable.IncomingDispatch {
	limit := l.config.DefaultGasLimit
	if dispatch.Message.GasLimit != nil {
		limit = min(*dispatch.Message.GasLimit, l.config.BlockGasLimit)
	}
	return sable.IncomingDispatch{
		Dispatch: dispatch.Dispatch,
		GasLimit: limit,
		Context:  dispatch.Context.Clone(),
	}
}

func (l *Ledger) actorState(id sable.ActorId, program Program) sable.ActorState {
	return sable.ActorState{
		Id:          id,
		CodeId:      program.CodeId,
		Code:        l.codes[program.CodeId].binary,
		MemoryPages: program.MemoryPages,
		Allocations: slices.Clone(program.Allocations),
		Balance:     l.balances[id],
		Initialized: program.Initialized,
		Terminated:  program.Terminated,
	}
}

func nextSeed(previous [32]byte, height uint64) [32]byte {
	var h [8]byte
	binary.LittleEndian.PutUint64(h[:], height)
	return blake2b.Sum256(append(previous[:], h[:]...))
}

// Height returns the height of the last processed block.
func (l *Ledger) Height() uint64 {
	return l.height
}

func (l *Ledger) Balance(actor sable.ActorId) sable.Value {
	return l.balances[actor]
}

func (l *Ledger) Program(id sable.ActorId) (Program, bool) {
	program, found := l.programs[id]
	program.Allocations = slices.Clone(program.Allocations)
	return program, found
}

// Mailbox lists the messages delivered to the given user in delivery order.
func (l *Ledger) Mailbox(user sable.ActorId) []sable.Message {
	res := make([]sable.Message, 0, len(l.mailbox[user]))
	for _, message := range l.mailbox[user] {
		res = append(res, message.Clone())
	}
	return res
}

// IsWaiting reports whether the given message is in the waitlist.
func (l *Ledger) IsWaiting(id sable.MessageId) bool {
	_, found := l.waitlist[id]
	return found
}

// Waitlist lists the ids of waiting messages in ascending order.
func (l *Ledger) Waitlist() []sable.MessageId {
	res := maps.Keys(l.waitlist)
	slices.SortFunc(res, func(a, b sable.MessageId) int { return bytes.Compare(a[:], b[:]) })
	return res
}

// Queue lists the queued dispatches in processing order.
func (l *Ledger) Queue() []sable.StoredDispatch {
	return l.queue.Dispatches()
}

// ScheduledTasks returns the number of pending scheduler tasks.
func (l *Ledger) ScheduledTasks() int {
	return l.tasks.Len()
}

// DueBlock returns the block the given task is scheduled for.
func (l *Ledger) DueBlock(task scheduler.Task) (uint64, bool) {
	return l.tasks.DueBlock(task)
}

// Supply returns the total value held by actors or carried by queued
// messages which have not been handed to their destination yet.
func (l *Ledger) Supply() (sable.Value, error) {
	var total sable.Value
	var overflow bool
	for _, balance := range l.balances {
		if total, overflow = sable.Add(total, balance); overflow {
			return sable.Value{}, ErrBalanceOverflow
		}
	}
	for _, dispatch := range l.queue.Dispatches() {
		if dispatch.Context != nil {
			continue
		}
		if total, overflow = sable.Add(total, dispatch.Message.Value); overflow {
			return sable.Value{}, ErrBalanceOverflow
		}
	}
	return total, nil
}
