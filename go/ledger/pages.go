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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/syndtr/goleveldb/leveldb"
	leveldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// PageStore is a page store the ledger can persist updated pages in.
type PageStore interface {
	sable.PageStore
	WritePage(actor sable.ActorId, page sable.PageNumber, data []byte) error
	RemovePage(actor sable.ActorId, page sable.PageNumber) error
}

type pageKey struct {
	actor sable.ActorId
	page  sable.PageNumber
}

// MemoryPageStore keeps pages in memory.
type MemoryPageStore struct {
	pages map[pageKey][]byte
}

func NewMemoryPageStore() *MemoryPageStore {
	return &MemoryPageStore{pages: map[pageKey][]byte{}}
}

func (s *MemoryPageStore) ReadPage(actor sable.ActorId, page sable.PageNumber) ([]byte, bool, error) {
	data, found := s.pages[pageKey{actor, page}]
	return data, found, nil
}

func (s *MemoryPageStore) WritePage(actor sable.ActorId, page sable.PageNumber, data []byte) error {
	if len(data) != sable.PageSize {
		return fmt.Errorf("invalid page size %d", len(data))
	}
	s.pages[pageKey{actor, page}] = bytes.Clone(data)
	return nil
}

func (s *MemoryPageStore) RemovePage(actor sable.ActorId, page sable.PageNumber) error {
	delete(s.pages, pageKey{actor, page})
	return nil
}

// LevelDBPageStore keeps pages in a LevelDB database. Keys are the actor id
// followed by the big-endian page number so that the pages of an actor are
// stored next to each other.
type LevelDBPageStore struct {
	db *leveldb.DB
}

// OpenLevelDBPageStore opens or creates a database in the given directory.
func OpenLevelDBPageStore(path string) (*LevelDBPageStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:             filter.NewBloomFilter(10),
		BlockCacheCapacity: 8 * opt.MiB,
		WriteBuffer:        4 * opt.MiB,
	})
	var corrupted *leveldb_errors.ErrCorrupted
	if errors.As(err, &corrupted) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open page database %s: %w", path, err)
	}
	return &LevelDBPageStore{db: db}, nil
}

// NewInMemoryLevelDBPageStore creates a database backed by memory only.
func NewInMemoryLevelDBPageStore() (*LevelDBPageStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBPageStore{db: db}, nil
}

func (s *LevelDBPageStore) ReadPage(actor sable.ActorId, page sable.PageNumber) ([]byte, bool, error) {
	data, err := s.db.Get(levelDBKey(actor, page), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) != sable.PageSize {
		return nil, false, fmt.Errorf("corrupted %v of actor %v: %d bytes", page, actor, len(data))
	}
	return data, true, nil
}

func (s *LevelDBPageStore) WritePage(actor sable.ActorId, page sable.PageNumber, data []byte) error {
	if len(data) != sable.PageSize {
		return fmt.Errorf("invalid page size %d", len(data))
	}
	return s.db.Put(levelDBKey(actor, page), data, nil)
}

func (s *LevelDBPageStore) RemovePage(actor sable.ActorId, page sable.PageNumber) error {
	return s.db.Delete(levelDBKey(actor, page), nil)
}

func (s *LevelDBPageStore) Close() error {
	return s.db.Close()
}

func levelDBKey(actor sable.ActorId, page sable.PageNumber) []byte {
	key := make([]byte, len(actor)+4)
	copy(key, actor[:])
	binary.BigEndian.PutUint32(key[len(actor):], uint32(page))
	return key
}
