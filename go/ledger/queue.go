// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/gammazero/deque"
)

// queue is the FIFO of dispatches waiting to be processed. Dispatches
// stopped by the block allowance are put back at its head.
type queue struct {
	dispatches *deque.Deque
}

func newQueue() *queue {
	return &queue{dispatches: deque.New()}
}

func (q *queue) Len() int {
	return q.dispatches.Len()
}

func (q *queue) PushBack(dispatch sable.StoredDispatch) {
	q.dispatches.PushBack(dispatch)
}

func (q *queue) PushFront(dispatch sable.StoredDispatch) {
	q.dispatches.PushFront(dispatch)
}

func (q *queue) PopFront() sable.StoredDispatch {
	return q.dispatches.PopFront().(sable.StoredDispatch)
}

func (q *queue) PopBack() sable.StoredDispatch {
	return q.dispatches.PopBack().(sable.StoredDispatch)
}

// Dispatches lists the queued dispatches in processing order.
func (q *queue) Dispatches() []sable.StoredDispatch {
	res := make([]sable.StoredDispatch, 0, q.dispatches.Len())
	for i := 0; i < q.dispatches.Len(); i++ {
		res = append(res, q.dispatches.At(i).(sable.StoredDispatch))
	}
	return res
}
