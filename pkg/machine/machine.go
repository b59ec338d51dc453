// Package machine 定义 supervisor 托管的不透明状态机能力
//
// table 与 row 的业务逻辑由嵌入方提供，supervisor 只依赖 [Machine] 能力集：
// 启动、处理事件、快照、是否完成，以及可选的 [Stopper]。
// 运行中的实例通过 [Spawn] 挂到 actor 运行时上，返回句柄 [Ref]。
//
// 子状态机的状态变化只能通过它自己发送的消息被父 Actor 看到：
//
//	func (r *rowMachine) Handle(ctx *actor.Context, ev actor.Message) machine.Snapshot {
//	    r.done = true
//	    ctx.TellParent(&rowsync.RowFinished{ID: r.id})
//	    return r.Snapshot()
//	}
package machine

import (
	"errors"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
)

var (
	// ErrNilDefinition 定义为空
	ErrNilDefinition = errors.New("machine: definition is nil")
	// ErrEmptyID 定义没有声明 id
	ErrEmptyID = errors.New("machine: definition id is empty")
	// ErrNilMachine 定义没有产生实例
	ErrNilMachine = errors.New("machine: definition produced nil machine")
)

// Machine 不透明状态机能力
//
// 所有方法都在所属 Actor 的 goroutine 上串行调用，实现无需加锁。
type Machine interface {
	// Start 开始运行，在 Actor 收到 Started 时调用
	// Start 中的状态变化不会反映在 Spawn 返回的初始快照里
	Start(ctx *actor.Context)

	// Handle 处理一个事件并返回处理后的状态
	Handle(ctx *actor.Context, event actor.Message) Snapshot

	// Snapshot 返回当前可序列化状态
	// 在 Start 之前也必须可用，Spawn 用它作为初始快照
	Snapshot() Snapshot

	// Done 报告状态机是否进入终态
	Done() bool
}

// Stopper 可停止的状态机
//
// 如果 Machine 实现了此接口，Actor 停止时会调用 Stop() 释放资源。
type Stopper interface {
	Stop()
}

// Definition 状态机定义
//
// ID 是实例在 supervisor 中的键，也是持久化快照的键。
type Definition interface {
	ID() string
	New() Machine
}

type funcDefinition struct {
	id      string
	factory func(id string) Machine
}

func (d *funcDefinition) ID() string   { return d.id }
func (d *funcDefinition) New() Machine { return d.factory(d.id) }

// NewDefinition 用工厂函数创建定义
func NewDefinition(id string, factory func(id string) Machine) Definition {
	return &funcDefinition{id: id, factory: factory}
}
