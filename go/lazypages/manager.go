// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package lazypages implements the memory of an executing actor on top of
// the actor's persisted pages. Pages are loaded on first access only, and
// every page is charged at most once for loading and once for being
// modified per execution. This keeps the cost of an execution proportional
// to the memory it touches instead of the memory it declares.
package lazypages

import (
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Sable/go/sable"
	"golang.org/x/exp/maps"
)

// ErrCorruptPage is reported for persisted pages of invalid size. It is
// always wrapped into a fatal error.
const ErrCorruptPage = sable.ConstError("corrupt page data")

// Charger is the gas sink of a manager.
type Charger interface {
	Charge(amount sable.Gas) error
}

// Config contains the limits and costs of a manager.
type Config struct {
	// MaxPages is the maximum size of the memory in WASM pages.
	MaxPages sable.WasmPageNumber
	// LoadPage is charged on the first access of a page.
	LoadPage sable.Gas
	// WritePage is charged on the first modification of a page.
	WritePage sable.Gas
	// GrowPage is charged for every WASM page added by Grow.
	GrowPage sable.Gas
}

type page struct {
	data  sable.PageBuf
	dirty bool
}

// Manager provides lazy access to the memory of a single actor during a
// single execution. It is not safe for concurrent use.
type Manager struct {
	actor   sable.ActorId
	store   sable.PageStore
	charger Charger
	config  Config

	size        sable.WasmPageNumber
	resident    map[sable.PageNumber]*page
	allocations map[sable.WasmPageNumber]bool
	allocated   []sable.WasmPageNumber
	freed       map[sable.WasmPageNumber]bool
}

// NewManager creates a manager for the memory of the given actor. No page is
// resident after construction.
func NewManager(
	actor sable.ActorId,
	size sable.WasmPageNumber,
	allocations []sable.WasmPageNumber,
	store sable.PageStore,
	charger Charger,
	config Config,
) *Manager {
	res := &Manager{
		actor:       actor,
		store:       store,
		charger:     charger,
		config:      config,
		size:        size,
		resident:    map[sable.PageNumber]*page{},
		allocations: map[sable.WasmPageNumber]bool{},
		freed:       map[sable.WasmPageNumber]bool{},
	}
	for _, p := range allocations {
		res.allocations[p] = true
	}
	return res
}

// Size returns the current size of the memory in WASM pages.
func (m *Manager) Size() sable.WasmPageNumber {
	return m.size
}

// IsResident reports whether the given page has been touched.
func (m *Manager) IsResident(p sable.PageNumber) bool {
	_, found := m.resident[p]
	return found
}

// Access returns the content of the given page, loading it on first access.
func (m *Manager) Access(p sable.PageNumber) (sable.PageBuf, error) {
	if uint64(p) >= m.size.ToPages() {
		return sable.PageBuf{}, fmt.Errorf("%w: %v beyond memory of %d pages", sable.ErrOutOfBounds, p, m.size)
	}
	if err := m.touch(p, p, false); err != nil {
		return sable.PageBuf{}, err
	}
	return m.resident[p].data, nil
}

// WritePage replaces the content of the given page and marks it dirty.
func (m *Manager) WritePage(p sable.PageNumber, data []byte) error {
	if len(data) != sable.PageSize {
		return fmt.Errorf("invalid page data size %d", len(data))
	}
	return m.Write(uint32(p.Offset()), data)
}

// Read fills buf with the memory content starting at addr.
func (m *Manager) Read(addr uint32, buf []byte) error {
	return m.access(addr, len(buf), false, func(page *page, pageOffset int, pos int, n int) {
		copy(buf[pos:pos+n], page.data[pageOffset:pageOffset+n])
	})
}

// Write copies data to the memory starting at addr. All touched pages are
// marked dirty.
func (m *Manager) Write(addr uint32, data []byte) error {
	return m.access(addr, len(data), true, func(page *page, pageOffset int, pos int, n int) {
		copy(page.data[pageOffset:pageOffset+n], data[pos:pos+n])
	})
}

// access visits the pages covering [addr, addr+length). Gas for all pages
// to be loaded or dirtied is charged before any page is touched.
func (m *Manager) access(addr uint32, length int, write bool, visit func(*page, int, int, int)) error {
	end := uint64(addr) + uint64(length)
	if end > m.size.Bytes() {
		return fmt.Errorf("%w: access [%d, %d) beyond memory of %d pages", sable.ErrOutOfBounds, addr, end, m.size)
	}
	if length == 0 {
		return nil
	}
	first, last := sable.PageOf(uint64(addr)), sable.PageOf(end-1)
	if err := m.touch(first, last, write); err != nil {
		return err
	}
	for pos := 0; pos < length; {
		cur := uint64(addr) + uint64(pos)
		p := sable.PageOf(cur)
		offset := int(cur - p.Offset())
		n := min(sable.PageSize-offset, length-pos)
		visit(m.resident[p], offset, pos, n)
		pos += n
	}
	return nil
}

// touch makes the pages in [first, last] resident, and dirty if requested.
func (m *Manager) touch(first, last sable.PageNumber, dirty bool) error {
	var toLoad, toDirty []sable.PageNumber
	for p := first; p <= last; p++ {
		cur, found := m.resident[p]
		if !found {
			toLoad = append(toLoad, p)
		}
		if dirty && (!found || !cur.dirty) {
			toDirty = append(toDirty, p)
		}
	}
	cost := m.config.LoadPage*sable.Gas(len(toLoad)) + m.config.WritePage*sable.Gas(len(toDirty))
	if cost > 0 {
		if err := m.charger.Charge(cost); err != nil {
			return err
		}
	}
	for _, p := range toLoad {
		if err := m.load(p); err != nil {
			return err
		}
	}
	for _, p := range toDirty {
		m.resident[p].dirty = true
	}
	return nil
}

func (m *Manager) load(p sable.PageNumber) error {
	res := &page{}
	if !m.freed[p.ToWasmPage()] {
		data, found, err := m.store.ReadPage(m.actor, p)
		if err != nil {
			return sable.Fatal(fmt.Errorf("failed to read %v of actor %v: %w", p, m.actor, err))
		}
		if found && len(data) != sable.PageSize {
			return sable.Fatal(fmt.Errorf("%w: %v of actor %v has %d bytes", ErrCorruptPage, p, m.actor, len(data)))
		}
		copy(res.data[:], data)
	}
	m.resident[p] = res
	return nil
}

// ChargeForPages computes the gas required for loading the given pages. Only
// pages not yet resident are charged, each of them once.
func (m *Manager) ChargeForPages(pages []sable.PageNumber) sable.Gas {
	seen := map[sable.PageNumber]bool{}
	count := 0
	for _, p := range pages {
		if seen[p] || m.IsResident(p) {
			continue
		}
		seen[p] = true
		count++
	}
	return m.config.LoadPage * sable.Gas(count)
}

// Grow extends the memory by delta WASM pages and returns the previous size.
// New pages are registered as dynamic allocations.
func (m *Manager) Grow(delta sable.WasmPageNumber) (sable.WasmPageNumber, error) {
	old := m.size
	if delta == 0 {
		return old, nil
	}
	if uint64(old)+uint64(delta) > uint64(m.config.MaxPages) {
		return old, fmt.Errorf("%w: growing %d pages by %d exceeds maximum of %d", sable.ErrGrowLimitExceeded, old, delta, m.config.MaxPages)
	}
	if cost := m.config.GrowPage * sable.Gas(delta); cost > 0 {
		if err := m.charger.Charge(cost); err != nil {
			return old, err
		}
	}
	for p := old; p < old+delta; p++ {
		m.allocations[p] = true
		m.allocated = append(m.allocated, p)
	}
	m.size = old + delta
	return old, nil
}

// Free releases a dynamically allocated WASM page. Its content is dropped;
// subsequent reads observe zeros.
func (m *Manager) Free(p sable.WasmPageNumber) error {
	if !m.allocations[p] {
		return fmt.Errorf("%w: page %d", sable.ErrInvalidFree, p)
	}
	delete(m.allocations, p)
	m.freed[p] = true
	for cur := p.FirstPage(); cur < (p + 1).FirstPage(); cur++ {
		delete(m.resident, cur)
	}
	return nil
}

// Deltas summarizes the effect of an execution on an actor's memory.
type Deltas struct {
	Accessed    []sable.PageNumber     // < resident but unchanged pages
	Dirty       []sable.PageUpdate     // < modified pages
	Removed     []sable.PageNumber     // < pages of freed WASM pages
	Allocated   []sable.WasmPageNumber // < pages allocated by this execution
	Freed       []sable.WasmPageNumber // < pages freed by this execution
	Size        sable.WasmPageNumber   // < final memory size
	Allocations []sable.WasmPageNumber // < all allocations after the execution
}

// AllocationsChanged reports whether the execution allocated or freed pages.
func (d *Deltas) AllocationsChanged() bool {
	return len(d.Allocated) > 0 || len(d.Freed) > 0
}

// IntoDeltas drains the manager into the deltas to be persisted. All lists
// are sorted. The manager must not be used afterwards.
func (m *Manager) IntoDeltas() Deltas {
	res := Deltas{Size: m.size}
	resident := maps.Keys(m.resident)
	slices.Sort(resident)
	for _, p := range resident {
		cur := m.resident[p]
		if cur.dirty {
			res.Dirty = append(res.Dirty, sable.PageUpdate{Page: p, Data: cur.data[:]})
		} else {
			res.Accessed = append(res.Accessed, p)
		}
	}

	res.Freed = maps.Keys(m.freed)
	slices.Sort(res.Freed)
	for _, w := range res.Freed {
		for p := w.FirstPage(); p < (w + 1).FirstPage(); p++ {
			if cur, found := m.resident[p]; !found || !cur.dirty {
				res.Removed = append(res.Removed, p)
			}
		}
	}

	for _, p := range m.allocated {
		if m.allocations[p] {
			res.Allocated = append(res.Allocated, p)
		}
	}
	res.Allocations = maps.Keys(m.allocations)
	slices.Sort(res.Allocations)

	m.resident = nil
	m.allocations = nil
	m.freed = nil
	return res
}
