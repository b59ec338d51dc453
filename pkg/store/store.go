// Package store 提供 row 快照的持久化端口
//
// [Store] 按 row id 保存、读取、删除和列出快照。supervisor 只在 SAVE_ROW 时调用 Save；
// 其余方法供 rows loader 决定恢复哪些 row。
//
// 两种实现：
//
//	MemoryStore - 进程内 map，适合测试和短生命周期运行
//	FileStore   - 每个 id 一个 YAML 文件，原子替换写入
//
// 同一 id 的并发 Save 不做串行化，最后写入者生效。
package store

import (
	"context"
	"errors"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

var (
	// ErrNotFound 快照不存在
	ErrNotFound = errors.New("store: snapshot not found")
	// ErrInvalidID id 为空或不可用
	ErrInvalidID = errors.New("store: invalid id")
)

// Store 快照持久化端口
type Store interface {
	// Save 保存快照，已存在时覆盖
	Save(ctx context.Context, id string, snap machine.Snapshot) error

	// Exists 检查快照是否存在
	Exists(ctx context.Context, id string) (bool, error)

	// Read 读取快照，不存在时返回包装了 ErrNotFound 的错误
	Read(ctx context.Context, id string) (machine.Snapshot, error)

	// Delete 删除快照，不存在时不报错
	Delete(ctx context.Context, id string) error

	// ListIDs 按字典序列出全部 id
	ListIDs(ctx context.Context) ([]string, error)
}
