// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reputation

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/luxfi/ids"
)

// Store is the persisted key-value interface of spec §6: two tables
// (reputation, bans) keyed by peer id, synchronously written on every
// mutation so the ledger is the authoritative source across restarts.
type Store interface {
	Load() (map[ids.NodeID]*Record, map[ids.NodeID]*Ban, error)
	SaveReputation(r Record) error
	DeleteReputation(peerID ids.NodeID) error
	SaveBan(b Ban) error
	DeleteBan(peerID ids.NodeID) error
}

// MemStore is an in-process Store, useful for tests and for running a
// drafter-only node that has no need to persist reputation of others.
type MemStore struct {
	mu      sync.Mutex
	records map[ids.NodeID]*Record
	bans    map[ids.NodeID]*Ban
}

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[ids.NodeID]*Record),
		bans:    make(map[ids.NodeID]*Ban),
	}
}

func (s *MemStore) Load() (map[ids.NodeID]*Record, map[ids.NodeID]*Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[ids.NodeID]*Record, len(s.records))
	for k, v := range s.records {
		cp := *v
		records[k] = &cp
	}
	bans := make(map[ids.NodeID]*Ban, len(s.bans))
	for k, v := range s.bans {
		cp := *v
		bans[k] = &cp
	}
	return records, bans, nil
}

func (s *MemStore) SaveReputation(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.records[r.PeerID] = &cp
	return nil
}

func (s *MemStore) DeleteReputation(peerID ids.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, peerID)
	return nil
}

func (s *MemStore) SaveBan(b Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := b
	s.bans[b.PeerID] = &cp
	return nil
}

func (s *MemStore) DeleteBan(peerID ids.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, peerID)
	return nil
}

// FileStore persists the two tables as one gob-encoded file per peer
// under <dir>/reputation/<peerID>.gob and <dir>/bans/<peerID>.gob. This
// is the simplest faithful reading of "a key-value store keyed by peer
// id" that doesn't require vendoring a full KV engine (see SPEC_FULL.md,
// "Teacher domain deps NOT wired" for why github.com/luxfi/database was
// not used here).
type FileStore struct {
	dir string
}

// NewFileStore opens (creating if necessary) a reputation store rooted
// at dir.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"reputation", "bans"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s table dir: %w", sub, err)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load() (map[ids.NodeID]*Record, map[ids.NodeID]*Ban, error) {
	records := make(map[ids.NodeID]*Record)
	if err := loadAll(filepath.Join(s.dir, "reputation"), func(peerID ids.NodeID, data []byte) error {
		var r Record
		if err := gobDecode(data, &r); err != nil {
			return err
		}
		records[peerID] = &r
		return nil
	}); err != nil {
		return nil, nil, err
	}

	bans := make(map[ids.NodeID]*Ban)
	if err := loadAll(filepath.Join(s.dir, "bans"), func(peerID ids.NodeID, data []byte) error {
		var b Ban
		if err := gobDecode(data, &b); err != nil {
			return err
		}
		bans[peerID] = &b
		return nil
	}); err != nil {
		return nil, nil, err
	}

	return records, bans, nil
}

func (s *FileStore) SaveReputation(r Record) error {
	return writeGob(filepath.Join(s.dir, "reputation", r.PeerID.String()+".gob"), r)
}

func (s *FileStore) DeleteReputation(peerID ids.NodeID) error {
	return removeIfExists(filepath.Join(s.dir, "reputation", peerID.String()+".gob"))
}

func (s *FileStore) SaveBan(b Ban) error {
	return writeGob(filepath.Join(s.dir, "bans", b.PeerID.String()+".gob"), b)
}

func (s *FileStore) DeleteBan(peerID ids.NodeID) error {
	return removeIfExists(filepath.Join(s.dir, "bans", peerID.String()+".gob"))
}

func loadAll(dir string, onEntry func(ids.NodeID, []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		peerIDStr := name[:len(name)-len(filepath.Ext(name))]
		peerID, err := ids.NodeIDFromString(peerIDStr)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := onEntry(peerID, data); err != nil {
			return err
		}
	}
	return nil
}

func writeGob(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func gobDecode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
