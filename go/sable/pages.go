// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sable

import "fmt"

//go:generate mockgen -source pages.go -destination pages_mock.go -package sable

const (
	// PageSize is the size of a storage page in bytes.
	PageSize = 1 << 12 // = 4 KiB

	// WasmPageSize is the size of a WASM memory page in bytes.
	WasmPageSize = 1 << 16 // = 64 KiB

	// PagesPerWasmPage is the number of storage pages in one WASM page.
	PagesPerWasmPage = WasmPageSize / PageSize
)

// PageNumber addresses a storage page of an actor's memory.
type PageNumber uint32

// WasmPageNumber addresses a WASM page of an actor's memory. It is also used
// to express memory sizes in WASM pages.
type WasmPageNumber uint32

// PageBuf is the content of a single storage page.
type PageBuf [PageSize]byte

// ToWasmPage returns the WASM page containing this page.
func (p PageNumber) ToWasmPage() WasmPageNumber {
	return WasmPageNumber(p / PagesPerWasmPage)
}

// Offset returns the linear memory address of the first byte of this page.
func (p PageNumber) Offset() uint64 {
	return uint64(p) * PageSize
}

func (p PageNumber) String() string {
	return fmt.Sprintf("page#%d", uint32(p))
}

// FirstPage returns the first storage page of this WASM page.
func (w WasmPageNumber) FirstPage() PageNumber {
	return PageNumber(w) * PagesPerWasmPage
}

// ToPages returns the number of storage pages covered by this many WASM
// pages.
func (w WasmPageNumber) ToPages() uint64 {
	return uint64(w) * PagesPerWasmPage
}

// Bytes returns the number of bytes covered by this many WASM pages.
func (w WasmPageNumber) Bytes() uint64 {
	return uint64(w) * WasmPageSize
}

// PageOf returns the storage page containing the given linear address.
func PageOf(addr uint64) PageNumber {
	return PageNumber(addr / PageSize)
}

// PageUpdate is the new content of a page modified by an execution.
type PageUpdate struct {
	Page PageNumber
	Data []byte
}

// PageStore provides read access to the persisted memory pages of actors.
// It is implemented by the ledger hosting the execution core.
type PageStore interface {
	// ReadPage returns the content of the given page of the given actor. The
	// boolean result is false if the page has never been written. Errors are
	// treated as fatal by the processor.
	ReadPage(actor ActorId, page PageNumber) ([]byte, bool, error)
}
