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

// undoLog records how to revert the modifications of a block. Entries are
// reverted in reverse order of their recording.
type undoLog struct {
	entries []func() error
}

// record registers a revert operation. Recording on a nil log is a no-op,
// for modifications outside of blocks.
func (u *undoLog) record(revert func() error) {
	if u == nil {
		return
	}
	u.entries = append(u.entries, revert)
}

func (u *undoLog) recordFunc(revert func()) {
	u.record(func() error {
		revert()
		return nil
	})
}

// rollback reverts all recorded modifications. Reverting continues after a
// failure, the first error is returned.
func (u *undoLog) rollback() error {
	var first error
	for i := len(u.entries) - 1; i >= 0; i-- {
		if err := u.entries[i](); err != nil && first == nil {
			first = err
		}
	}
	u.entries = nil
	return first
}

func setEntry[K comparable, V any](m map[K]V, key K, value V, undo *undoLog) {
	old, found := m[key]
	undo.recordFunc(func() {
		if found {
			m[key] = old
		} else {
			delete(m, key)
		}
	})
	m[key] = value
}

func deleteEntry[K comparable, V any](m map[K]V, key K, undo *undoLog) {
	old, found := m[key]
	if !found {
		return
	}
	undo.recordFunc(func() { m[key] = old })
	delete(m, key)
}
