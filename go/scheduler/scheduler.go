// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package scheduler maintains tasks to be executed by the ledger once a
// given block height is reached, e.g. waking a waiting message or expiring
// a waitlist entry.
package scheduler

import (
	"fmt"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// ErrDuplicateTask is returned when adding a task that is already scheduled.
const ErrDuplicateTask = sable.ConstError("task already scheduled")

// TaskKind enumerates the kinds of scheduled tasks.
type TaskKind byte

const (
	// WakeMessage moves a message from the waitlist back to the queue.
	WakeMessage TaskKind = iota
	// RemoveFromWaitlist removes an expired message from the waitlist.
	RemoveFromWaitlist
	// RemoveFromMailbox removes an expired message from a user's mailbox.
	RemoveFromMailbox
	// PauseProgram expires the pause of a program.
	PauseProgram
)

func (k TaskKind) String() string {
	switch k {
	case WakeMessage:
		return "wake-message"
	case RemoveFromWaitlist:
		return "remove-from-waitlist"
	case RemoveFromMailbox:
		return "remove-from-mailbox"
	case PauseProgram:
		return "pause-program"
	default:
		return fmt.Sprintf("TaskKind(%d)", byte(k))
	}
}

// Task is a state transition to be performed at a future block. Tasks are
// identified by their kind and the entities they target.
type Task struct {
	Kind    TaskKind
	Actor   sable.ActorId
	Message sable.MessageId
}

func (t Task) String() string {
	return fmt.Sprintf("%v(%v, %v)", t.Kind, t.Actor, t.Message)
}

// Scheduler is a log of tasks keyed by the block they become due in. Tasks
// due in the same block are kept in registration order. It is not safe for
// concurrent use.
type Scheduler struct {
	blocks *treemap.Map // block height (uint64) -> []Task
	index  map[Task]uint64
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		blocks: treemap.NewWith(utils.UInt64Comparator),
		index:  map[Task]uint64{},
	}
}

// Add registers a task to become due at the given block.
func (s *Scheduler) Add(block uint64, task Task) error {
	if due, found := s.index[task]; found {
		return fmt.Errorf("%w: %v due at block %d", ErrDuplicateTask, task, due)
	}
	s.blocks.Put(block, append(s.tasksAt(block), task))
	s.index[task] = block
	return nil
}

// Cancel removes the given task. It returns the block the task was due in
// and whether the task was found.
func (s *Scheduler) Cancel(task Task) (uint64, bool) {
	block, found := s.index[task]
	if !found {
		return 0, false
	}
	delete(s.index, task)
	tasks := s.tasksAt(block)
	rest := make([]Task, 0, len(tasks)-1)
	for _, cur := range tasks {
		if cur != task {
			rest = append(rest, cur)
		}
	}
	if len(rest) == 0 {
		s.blocks.Remove(block)
	} else {
		s.blocks.Put(block, rest)
	}
	return block, true
}

// Drain removes and returns all tasks due at or before the given height.
// Tasks are ordered by their due block and by registration order within a
// block.
func (s *Scheduler) Drain(height uint64) []Task {
	var res []Task
	var drained []uint64
	it := s.blocks.Iterator()
	for it.Next() {
		block := it.Key().(uint64)
		if block > height {
			break
		}
		for _, task := range it.Value().([]Task) {
			res = append(res, task)
			delete(s.index, task)
		}
		drained = append(drained, block)
	}
	for _, block := range drained {
		s.blocks.Remove(block)
	}
	return res
}

// TasksAt returns the tasks due at exactly the given block without removing
// them.
func (s *Scheduler) TasksAt(block uint64) []Task {
	tasks := s.tasksAt(block)
	res := make([]Task, len(tasks))
	copy(res, tasks)
	return res
}

// Contains reports whether the given task is scheduled.
func (s *Scheduler) Contains(task Task) bool {
	_, found := s.index[task]
	return found
}

// Clone creates an independent copy of the scheduler.
func (s *Scheduler) Clone() *Scheduler {
	res := New()
	it := s.blocks.Iterator()
	for it.Next() {
		tasks := it.Value().([]Task)
		res.blocks.Put(it.Key(), append([]Task(nil), tasks...))
	}
	for task, block := range s.index {
		res.index[task] = block
	}
	return res
}

// DueBlock returns the block the given task is scheduled for.
func (s *Scheduler) DueBlock(task Task) (uint64, bool) {
	block, found := s.index[task]
	return block, found
}

// Len returns the number of scheduled tasks.
func (s *Scheduler) Len() int {
	return len(s.index)
}

func (s *Scheduler) tasksAt(block uint64) []Task {
	value, found := s.blocks.Get(block)
	if !found {
		return nil
	}
	return value.([]Task)
}
