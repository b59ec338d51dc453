package rowsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

// TableLoader 产出 table 定义
//
// 在独立 goroutine 上调用，结果以消息形式回到 supervisor。
type TableLoader interface {
	LoadTable(ctx context.Context) (machine.Definition, error)
}

// RowsLoader 产出需要 spawn 的全部 row 定义
type RowsLoader interface {
	LoadRows(ctx context.Context) ([]machine.Definition, error)
}

// TableLoaderFunc 函数适配器
type TableLoaderFunc func(ctx context.Context) (machine.Definition, error)

// LoadTable 实现 TableLoader
func (f TableLoaderFunc) LoadTable(ctx context.Context) (machine.Definition, error) {
	return f(ctx)
}

// RowsLoaderFunc 函数适配器
type RowsLoaderFunc func(ctx context.Context) ([]machine.Definition, error)

// LoadRows 实现 RowsLoader
func (f RowsLoaderFunc) LoadRows(ctx context.Context) ([]machine.Definition, error) {
	return f(ctx)
}

// StaticTable 总是返回给定定义
func StaticTable(def machine.Definition) TableLoader {
	return TableLoaderFunc(func(context.Context) (machine.Definition, error) {
		return def, nil
	})
}

// StaticRows 总是返回给定定义列表
func StaticRows(defs ...machine.Definition) RowsLoader {
	return RowsLoaderFunc(func(context.Context) ([]machine.Definition, error) {
		return append([]machine.Definition(nil), defs...), nil
	})
}

// RowFactory 根据持久化快照重建 row 定义
type RowFactory func(id string, snap machine.Snapshot) (machine.Definition, error)

// StoreRowsLoader 从 Store 恢复 row
//
// 按 ListIDs 的顺序读取每个快照，交给 RowFactory 生成定义。
// 列出之后被删除的 id 会被跳过。
type StoreRowsLoader struct {
	store   store.Store
	factory RowFactory
}

var _ RowsLoader = (*StoreRowsLoader)(nil)

// NewStoreRowsLoader 创建基于 Store 的 Rows Loader
func NewStoreRowsLoader(st store.Store, factory RowFactory) *StoreRowsLoader {
	return &StoreRowsLoader{store: st, factory: factory}
}

// LoadRows 实现 RowsLoader
func (l *StoreRowsLoader) LoadRows(ctx context.Context) ([]machine.Definition, error) {
	if l.store == nil || l.factory == nil {
		return nil, fmt.Errorf("%w: store rows loader needs a store and a factory", ErrInvalidConfig)
	}

	ids, err := l.store.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	defs := make([]machine.Definition, 0, len(ids))
	for _, id := range ids {
		snap, err := l.store.Read(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read snapshot %s: %w", id, err)
		}
		def, err := l.factory(id, snap)
		if err != nil {
			return nil, fmt.Errorf("restore row %s: %w", id, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
