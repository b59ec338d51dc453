package actor

import (
	"context"
	"errors"
	"fmt"
)

// ErrActorExists 同名 Actor 已注册
var ErrActorExists = errors.New("actor already exists")

// ErrSystemStopped Actor 系统已关闭
var ErrSystemStopped = errors.New("actor system is not running")

// Message Actor 消息接口
// 所有 Actor 间传递的消息都必须实现此接口
type Message interface {
	// Kind 返回消息类型标识，用于日志和死信记录
	Kind() string
}

// PID (Process ID) Actor 进程标识符
type PID struct {
	// ID Actor 在系统内的唯一名称
	ID string

	system *System
	done   chan struct{}
}

// String 返回 PID 的字符串表示
func (p *PID) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.ID
}

// Tell 发送消息（fire-and-forget）
func (p *PID) Tell(msg Message) {
	if p != nil && p.system != nil {
		p.system.Send(p, msg)
	}
}

// Done 返回一个在 Actor 完全退出后关闭的通道
func (p *PID) Done() <-chan struct{} {
	return p.done
}

// Actor Actor 接口
type Actor interface {
	// Receive 处理接收到的消息
	Receive(ctx *Context, msg Message)
}

// ActorFunc 函数式 Actor，便于快速创建简单 Actor
type ActorFunc func(ctx *Context, msg Message)

// Receive 实现 Actor 接口
func (f ActorFunc) Receive(ctx *Context, msg Message) {
	f(ctx, msg)
}

// Context Actor 执行上下文
// 仅在 Receive 调用期间有效，不要在 Actor 之外保存
type Context struct {
	// Self 当前 Actor 的 PID
	Self *PID
	// Sender 消息发送者的 PID（如果有）
	Sender *PID
	// Parent 父 Actor 的 PID（如果有）
	Parent *PID

	system  *System
	ctx     context.Context
	message Message
}

// Tell 以当前 Actor 作为发送者发送消息
func (c *Context) Tell(target *PID, msg Message) {
	if target == nil {
		return
	}
	c.system.SendWithSender(target, msg, c.Self)
}

// TellParent 向父 Actor 发送消息
// 没有父 Actor 时消息被丢弃
func (c *Context) TellParent(msg Message) {
	c.Tell(c.Parent, msg)
}

// Reply 回复消息给发送者
func (c *Context) Reply(msg Message) {
	c.Tell(c.Sender, msg)
}

// Spawn 创建子 Actor
func (c *Context) Spawn(actor Actor, name string) (*PID, error) {
	return c.system.spawnWithProps(actor, DefaultProps(name), c.Self)
}

// SpawnWithProps 使用属性创建子 Actor
func (c *Context) SpawnWithProps(actor Actor, props *Props) (*PID, error) {
	return c.system.spawnWithProps(actor, props, c.Self)
}

// Stop 停止指定 Actor
func (c *Context) Stop(pid *PID) {
	c.system.Stop(pid)
}

// StopSelf 停止当前 Actor
func (c *Context) StopSelf() {
	c.system.Stop(c.Self)
}

// Context 获取 Actor 生命周期绑定的 Go context
// Actor 停止后该 context 被取消
func (c *Context) Context() context.Context {
	return c.ctx
}

// Message 获取当前正在处理的消息
func (c *Context) Message() Message {
	return c.message
}

// System 获取 Actor 系统引用
func (c *Context) System() *System {
	return c.system
}

// Props Actor 属性配置
type Props struct {
	// Name Actor 名称，系统内唯一
	Name string
	// MailboxSize 邮箱大小，0 表示使用系统默认值
	MailboxSize int
	// SupervisorStrategy 监督策略，为空时继承父 Actor 的策略
	SupervisorStrategy SupervisorStrategy
}

// DefaultProps 默认属性
func DefaultProps(name string) *Props {
	return &Props{Name: name}
}

// WithMailboxSize 设置邮箱大小
func (p *Props) WithMailboxSize(size int) *Props {
	p.MailboxSize = size
	return p
}

// WithSupervisor 设置监督策略
func (p *Props) WithSupervisor(strategy SupervisorStrategy) *Props {
	p.SupervisorStrategy = strategy
	return p
}

// ============== 系统消息 ==============

// Started Actor 启动完成消息，总是 Actor 收到的第一条消息
type Started struct{}

// Kind 实现 Message 接口
func (s *Started) Kind() string { return "system.started" }

// Stopping Actor 正在停止消息，之后不会再收到用户消息
type Stopping struct{}

// Kind 实现 Message 接口
func (s *Stopping) Kind() string { return "system.stopping" }

// Stopped Actor 已停止消息，在清理阶段发送
type Stopped struct{}

// Kind 实现 Message 接口
func (s *Stopped) Kind() string { return "system.stopped" }

// Restarting Actor 正在重启消息
type Restarting struct{}

// Kind 实现 Message 接口
func (r *Restarting) Kind() string { return "system.restarting" }

// PoisonPill 毒丸消息，处理完之前的消息后停止 Actor
type PoisonPill struct{}

// Kind 实现 Message 接口
func (p *PoisonPill) Kind() string { return "system.poison_pill" }

// Terminated 子 Actor 因失败而终止
//
// 监督指令为 Stop 或 Escalate 时发给父 Actor；父 Actor 主动停止子 Actor 时不会发送。
type Terminated struct {
	Who       *PID
	Reason    any
	Directive Directive
}

// Kind 实现 Message 接口
func (t *Terminated) Kind() string { return "system.terminated" }

// Error 返回终止原因描述
func (t *Terminated) Error() string {
	return fmt.Sprintf("actor %s terminated: %v", t.Who, t.Reason)
}
