package machine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
)

// Ref 运行中状态机的句柄
//
// Snapshot 读取的是状态机最近一次处理完事件后的缓存副本，
// 调用方不会阻塞在子 Actor 的邮箱上。
type Ref struct {
	id  string
	pid *actor.PID
	sys *actor.System

	mu   sync.RWMutex
	snap Snapshot
	done bool

	stopped atomic.Bool
}

// ID 返回定义声明的 id
func (r *Ref) ID() string { return r.id }

// PID 返回底层 Actor 的 PID
func (r *Ref) PID() *actor.PID { return r.pid }

// Send 向状态机发送事件（fire-and-forget）
func (r *Ref) Send(event actor.Message) {
	r.pid.Tell(event)
}

// Snapshot 返回当前状态的副本
func (r *Ref) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone()
}

// Done 报告状态机是否进入终态
func (r *Ref) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// RequestSnapshot 请求状态机把快照回报给 replyTo
//
// 请求排在已投递的事件之后处理，回报的是这些事件全部处理完之后的状态，
// 回复为带同一 token 的 [SnapshotReply]。Started 总是第一条消息，
// 因此 Spawn 之后立即发出的请求一定回报 Start 之后的状态。
func (r *Ref) RequestSnapshot(replyTo *actor.PID, token string) {
	r.pid.Tell(&SnapshotRequest{ReplyTo: replyTo, Token: token})
}

// Stop 停止状态机
// 幂等，只有第一次调用返回 true
func (r *Ref) Stop() bool {
	if !r.stopped.CompareAndSwap(false, true) {
		return false
	}
	r.sys.Stop(r.pid)
	return true
}

// Stopped 报告是否已经请求停止
func (r *Ref) Stopped() bool {
	return r.stopped.Load()
}

func (r *Ref) update(snap Snapshot, done bool) {
	snap = snap.Clone()
	r.mu.Lock()
	r.snap = snap
	r.done = done
	r.mu.Unlock()
}

// Spawn 实例化定义并作为 ctx 的子 Actor 运行
//
// 初始快照在返回前同步取得，因此调用方拿到 Ref 后立即可以读取快照。
// 这份快照取自 Start 之前；需要 Start 之后的状态时用 [Ref.RequestSnapshot]。
func Spawn(ctx *actor.Context, def Definition, props *actor.Props) (*Ref, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	id := def.ID()
	if id == "" {
		return nil, ErrEmptyID
	}

	m := def.New()
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilMachine, id)
	}

	ref := &Ref{id: id, sys: ctx.System()}
	ref.update(m.Snapshot(), m.Done())

	pid, err := ctx.SpawnWithProps(&machineActor{def: def, m: m, ref: ref}, props)
	if err != nil {
		return nil, fmt.Errorf("spawn machine %s: %w", id, err)
	}
	ref.pid = pid
	return ref, nil
}

// machineActor 把 Machine 适配为 actor.Actor
type machineActor struct {
	def Definition
	m   Machine
	ref *Ref
}

// Receive 实现 actor.Actor 接口
func (a *machineActor) Receive(ctx *actor.Context, msg actor.Message) {
	switch m := msg.(type) {
	case *actor.Started:
		a.m.Start(ctx)
		a.ref.update(a.m.Snapshot(), a.m.Done())

	case *actor.Restarting:
		// 从定义重建，随后的 Started 会再次启动
		a.stop()
		a.m = a.def.New()
		a.ref.update(a.m.Snapshot(), a.m.Done())

	case *actor.Stopping:
		a.stop()

	case *actor.Stopped:

	case *SnapshotRequest:
		snap := a.m.Snapshot()
		a.ref.update(snap, a.m.Done())
		if m.ReplyTo != nil {
			ctx.Tell(m.ReplyTo, &SnapshotReply{ID: a.ref.id, Token: m.Token, Snapshot: snap.Clone()})
		}

	default:
		snap := a.m.Handle(ctx, msg)
		a.ref.update(snap, a.m.Done())
	}
}

func (a *machineActor) stop() {
	if s, ok := a.m.(Stopper); ok {
		s.Stop()
	}
}
