package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

const fileExt = ".yaml"

// FileStore 基于目录的快照存储
//
// 每个 id 对应目录下一个 YAML 文件，文件名是转义后的 id。
// 写入先落到临时文件再 rename，读者不会看到半写的文件。
type FileStore struct {
	dir  string
	perm fs.FileMode
}

var _ Store = (*FileStore)(nil)

// FileOption FileStore 配置选项
type FileOption func(*FileStore)

// WithFileMode 设置快照文件权限
func WithFileMode(perm fs.FileMode) FileOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure dir %s: %w", dir, err)
	}

	s := &FileStore{dir: dir, perm: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir 返回存储目录
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, url.PathEscape(id)+fileExt)
}

// Save 实现 Store
func (s *FileStore) Save(ctx context.Context, id string, snap machine.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp for %s: %w", id, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", id, err)
	}
	if err := os.Chmod(tmpName, s.perm); err != nil {
		return fmt.Errorf("store: chmod %s: %w", id, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		return fmt.Errorf("store: replace %s: %w", id, err)
	}
	return nil
}

// Exists 实现 Store
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}

	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("store: stat %s: %w", id, err)
}

// Read 实现 Store
func (s *FileStore) Read(ctx context.Context, id string) (machine.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return machine.Snapshot{}, err
	}
	if id == "" {
		return machine.Snapshot{}, ErrInvalidID
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return machine.Snapshot{}, fmt.Errorf("read %s: %w", id, ErrNotFound)
		}
		return machine.Snapshot{}, fmt.Errorf("store: read %s: %w", id, err)
	}

	var snap machine.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return machine.Snapshot{}, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return snap, nil
}

// Delete 实现 Store
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// ListIDs 实现 Store
func (s *FileStore) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}
