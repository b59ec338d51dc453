package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// MemoryStore 进程内快照存储
//
// Thread Safety: 所有方法使用读写锁保护，保存和读取都复制快照。
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]machine.Snapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]machine.Snapshot)}
}

// Save 实现 Store
func (s *MemoryStore) Save(ctx context.Context, id string, snap machine.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	s.snaps[id] = snap.Clone()
	s.mu.Unlock()
	return nil
}

// Exists 实现 Store
func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snaps[id]
	return ok, nil
}

// Read 实现 Store
func (s *MemoryStore) Read(ctx context.Context, id string) (machine.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return machine.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return machine.Snapshot{}, fmt.Errorf("read %s: %w", id, ErrNotFound)
	}
	return snap.Clone(), nil
}

// Delete 实现 Store
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.snaps, id)
	s.mu.Unlock()
	return nil
}

// ListIDs 实现 Store
func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids, nil
}

// Len 返回快照数量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}
