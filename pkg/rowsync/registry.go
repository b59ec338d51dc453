package rowsync

import (
	"maps"
	"slices"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// registry row 注册表
//
// 只由 supervisor 的 goroutine 访问，不加锁。
// 不变式：unfinished 中的每个 id 都在 rows 中。
type registry struct {
	rows       map[string]*machine.Ref
	unfinished map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		rows:       make(map[string]*machine.Ref),
		unfinished: make(map[string]struct{}),
	}
}

// add 登记 row 并标记为未完成
func (r *registry) add(ref *machine.Ref) {
	r.rows[ref.ID()] = ref
	r.unfinished[ref.ID()] = struct{}{}
}

func (r *registry) get(id string) (*machine.Ref, bool) {
	ref, ok := r.rows[id]
	return ref, ok
}

func (r *registry) has(id string) bool {
	_, ok := r.rows[id]
	return ok
}

// remove 一步内同时移出 rows 与 unfinished
func (r *registry) remove(id string) (*machine.Ref, bool) {
	ref, ok := r.rows[id]
	if !ok {
		return nil, false
	}
	delete(r.rows, id)
	delete(r.unfinished, id)
	return ref, true
}

// findByPID 按底层 Actor 查找 row id
func (r *registry) findByPID(pid *actor.PID) (string, bool) {
	if pid == nil {
		return "", false
	}
	for id, row := range r.rows {
		if row.PID() == pid {
			return id, true
		}
	}
	return "", false
}

// markFinished 把 id 移出未完成集合
// 只有这一次移除使集合由非空变为空时返回 true
func (r *registry) markFinished(id string) bool {
	if _, ok := r.unfinished[id]; !ok {
		return false
	}
	delete(r.unfinished, id)
	return len(r.unfinished) == 0
}

func (r *registry) ids() []string {
	return slices.Sorted(maps.Keys(r.rows))
}

func (r *registry) unfinishedIDs() []string {
	return slices.Sorted(maps.Keys(r.unfinished))
}

func (r *registry) len() int {
	return len(r.rows)
}

// drain 清空注册表，按 id 顺序返回所有 row
func (r *registry) drain() []*machine.Ref {
	refs := make([]*machine.Ref, 0, len(r.rows))
	for _, id := range r.ids() {
		refs = append(refs, r.rows[id])
	}
	clear(r.rows)
	clear(r.unfinished)
	return refs
}
