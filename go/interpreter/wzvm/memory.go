// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wzvm

import (
	"bytes"
	"errors"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/tetratelabs/wazero/api"
)

// memory is the linear memory of an instance as seen by host functions. It
// keeps the size of the backing memory in sync, which enforces the memory
// limits and charges for grown pages.
type memory struct {
	instance api.Memory
	backing  sable.Memory
	snapshot []byte
}

// load copies the content of the backing memory into the given instance
// memory.
func load(backing sable.Memory, instance api.Memory) (*memory, error) {
	size := backing.Size().Bytes()
	snapshot := make([]byte, size)
	for addr := uint64(0); addr < size; addr += sable.PageSize {
		if err := backing.Read(uint32(addr), snapshot[addr:addr+sable.PageSize]); err != nil {
			return nil, err
		}
	}
	if !instance.Write(0, snapshot) {
		return nil, errors.New("environment memory smaller than backing memory")
	}
	return &memory{instance: instance, backing: backing, snapshot: snapshot}, nil
}

func (m *memory) Size() sable.WasmPageNumber {
	return sable.WasmPageNumber(m.instance.Size() / sable.WasmPageSize)
}

func (m *memory) Read(addr uint32, buf []byte) error {
	data, ok := m.instance.Read(addr, uint32(len(buf)))
	if !ok {
		return sable.ErrOutOfBounds
	}
	copy(buf, data)
	return nil
}

func (m *memory) Write(addr uint32, data []byte) error {
	if !m.instance.Write(addr, data) {
		return sable.ErrOutOfBounds
	}
	return nil
}

func (m *memory) Grow(delta sable.WasmPageNumber) (sable.WasmPageNumber, error) {
	if err := m.sync(); err != nil {
		return 0, err
	}
	size := m.Size()
	if limit, found := m.instance.Definition().Max(); found && uint64(size)+uint64(delta) > uint64(limit) {
		return size, sable.ErrGrowLimitExceeded
	}
	previous, err := m.backing.Grow(delta)
	if err != nil {
		return previous, err
	}
	if _, ok := m.instance.Grow(uint32(delta)); !ok {
		return previous, sable.ErrGrowLimitExceeded
	}
	return previous, nil
}

func (m *memory) Free(page sable.WasmPageNumber) error {
	if err := m.sync(); err != nil {
		return err
	}
	if err := m.backing.Free(page); err != nil {
		return err
	}
	start := page.Bytes()
	m.instance.Write(uint32(start), make([]byte, sable.WasmPageSize))
	if start < uint64(len(m.snapshot)) {
		clear(m.snapshot[start : start+sable.WasmPageSize])
	}
	return nil
}

// sync grows the backing memory to the size of the instance memory, which
// may have been grown by the program itself.
func (m *memory) sync() error {
	size, backing := m.Size(), m.backing.Size()
	if size <= backing {
		return nil
	}
	if _, err := m.backing.Grow(size - backing); err != nil {
		if errors.Is(err, sable.ErrGrowLimitExceeded) {
			return sable.HaltWithTrap(sable.TrapMemoryLimitExceeded, err.Error())
		}
		return err
	}
	return nil
}

// store writes the pages modified during the execution back to the backing
// memory.
func (m *memory) store() error {
	if err := m.sync(); err != nil {
		return err
	}
	size := uint64(m.instance.Size())
	var zero [sable.PageSize]byte
	for addr := uint64(0); addr < size; addr += sable.PageSize {
		current, _ := m.instance.Read(uint32(addr), sable.PageSize)
		original := zero[:]
		if addr < uint64(len(m.snapshot)) {
			original = m.snapshot[addr : addr+sable.PageSize]
		}
		if bytes.Equal(current, original) {
			continue
		}
		if err := m.backing.Write(uint32(addr), current); err != nil {
			return err
		}
	}
	return nil
}
