package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// System Actor 系统
// 管理所有 Actor 的生命周期、消息路由和监督
type System struct {
	name string

	// Actor 注册表
	actors   map[string]*actorCell
	actorsMu sync.RWMutex

	// 全局邮箱，由单个分发器按 FIFO 顺序投递
	mailbox chan envelope

	// 死信队列（无法投递的消息）
	deadLetters chan envelope

	// 生命周期控制
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning atomic.Bool

	config *SystemConfig
	stats  *SystemStats
	logger *slog.Logger
}

// SystemConfig 系统配置
type SystemConfig struct {
	// MailboxSize 全局邮箱大小
	MailboxSize int
	// DeadLetterSize 死信队列大小
	DeadLetterSize int
	// DefaultActorMailboxSize 默认 Actor 邮箱大小
	DefaultActorMailboxSize int
	// EnableDeadLetterLogging 是否记录死信
	EnableDeadLetterLogging bool
	// PanicHandler panic 处理函数，为空时记录日志
	PanicHandler func(actor *PID, msg Message, err any)
	// Logger 自定义日志器，为空时使用 slog.Default()
	Logger *slog.Logger
}

// DefaultSystemConfig 默认系统配置
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MailboxSize:             10000,
		DeadLetterSize:          1000,
		DefaultActorMailboxSize: 100,
		EnableDeadLetterLogging: true,
	}
}

// SystemStats 系统统计
type SystemStats struct {
	TotalActors   int64
	TotalMessages int64
	DeadLetters   int64
	ProcessedMsgs int64
	StartTime     time.Time
}

// actorCell Actor 单元，包含 Actor 及其运行时状态
type actorCell struct {
	pid      *PID
	actor    Actor
	mailbox  chan envelope
	parent   *PID
	children map[string]*PID

	state    actorState
	stateMu  sync.Mutex
	restarts int

	// 是否已投递 Stopping，强制退出时由清理阶段补发
	stoppingSent bool

	supervisor SupervisorStrategy

	ctx    context.Context
	cancel context.CancelFunc
}

type actorState int

const (
	actorStateIdle actorState = iota
	actorStateRunning
	actorStateStopping
	actorStateStopped
)

// envelope 消息信封
type envelope struct {
	target  *PID
	sender  *PID
	message Message
}

// NewSystem 创建新的 Actor 系统
func NewSystem(name string) *System {
	return NewSystemWithConfig(name, DefaultSystemConfig())
}

// NewSystemWithConfig 使用配置创建 Actor 系统
func NewSystemWithConfig(name string, config *SystemConfig) *System {
	if config == nil {
		config = DefaultSystemConfig()
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultSystemConfig().MailboxSize
	}
	if config.DefaultActorMailboxSize <= 0 {
		config.DefaultActorMailboxSize = DefaultSystemConfig().DefaultActorMailboxSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &System{
		name:        name,
		actors:      make(map[string]*actorCell),
		mailbox:     make(chan envelope, config.MailboxSize),
		deadLetters: make(chan envelope, max(config.DeadLetterSize, 1)),
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		logger:      logger.With("system", name),
		stats: &SystemStats{
			StartTime: time.Now(),
		},
	}

	s.isRunning.Store(true)

	s.wg.Add(1)
	go s.dispatcher()

	s.wg.Add(1)
	go s.deadLetterHandler()

	s.logger.Debug("actor system started")
	return s
}

// Name 返回系统名称
func (s *System) Name() string {
	return s.name
}

// Logger 返回系统日志器
func (s *System) Logger() *slog.Logger {
	return s.logger
}

// Spawn 创建顶层 Actor
func (s *System) Spawn(actor Actor, name string) (*PID, error) {
	return s.spawnWithProps(actor, DefaultProps(name), nil)
}

// SpawnWithProps 使用属性创建顶层 Actor
func (s *System) SpawnWithProps(actor Actor, props *Props) (*PID, error) {
	return s.spawnWithProps(actor, props, nil)
}

// spawnWithProps 内部创建方法
func (s *System) spawnWithProps(actor Actor, props *Props, parent *PID) (*PID, error) {
	if !s.isRunning.Load() {
		return nil, ErrSystemStopped
	}
	if props == nil || props.Name == "" {
		return nil, fmt.Errorf("actor name cannot be empty")
	}

	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()

	if _, exists := s.actors[props.Name]; exists {
		return nil, fmt.Errorf("spawn %s: %w", props.Name, ErrActorExists)
	}

	pid := &PID{
		ID:     props.Name,
		system: s,
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(s.ctx)

	mailboxSize := props.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = s.config.DefaultActorMailboxSize
	}

	cell := &actorCell{
		pid:        pid,
		actor:      actor,
		mailbox:    make(chan envelope, mailboxSize),
		parent:     parent,
		children:   make(map[string]*PID),
		state:      actorStateIdle,
		supervisor: props.SupervisorStrategy,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.actors[props.Name] = cell
	atomic.AddInt64(&s.stats.TotalActors, 1)

	if parent != nil {
		if parentCell, ok := s.actors[parent.ID]; ok {
			parentCell.children[props.Name] = pid
		}
	}

	s.wg.Add(1)
	go s.actorLoop(cell)

	// Started 总是第一条消息
	s.SendWithSender(pid, &Started{}, parent)

	s.logger.Debug("spawned actor", "name", props.Name, "parent", parent)
	return pid, nil
}

// Send 发送消息（无发送者）
func (s *System) Send(target *PID, msg Message) {
	s.SendWithSender(target, msg, nil)
}

// SendWithSender 发送消息（带发送者）
func (s *System) SendWithSender(target *PID, msg Message, sender *PID) {
	if target == nil || msg == nil {
		return
	}
	s.enqueue(envelope{target: target, sender: sender, message: msg})
}

// enqueue 投递到全局邮箱，邮箱满时转入死信
func (s *System) enqueue(env envelope) bool {
	if !s.isRunning.Load() {
		return false
	}

	select {
	case s.mailbox <- env:
		atomic.AddInt64(&s.stats.TotalMessages, 1)
		return true
	default:
		s.deadLetter(env)
		return false
	}
}

func (s *System) deadLetter(env envelope) {
	select {
	case s.deadLetters <- env:
		atomic.AddInt64(&s.stats.DeadLetters, 1)
	default:
		s.logger.Warn("dead letter queue full, message dropped",
			"kind", env.message.Kind(), "target", env.target.ID)
	}
}

// Stop 停止 Actor
//
// 已排队的消息会先被处理，然后 Actor 收到 Stopping 并退出。
// 重复调用是安全的，只有第一次调用生效。
func (s *System) Stop(pid *PID) {
	if pid == nil {
		return
	}

	s.actorsMu.RLock()
	cell, exists := s.actors[pid.ID]
	s.actorsMu.RUnlock()

	if !exists || cell.pid != pid {
		return
	}

	cell.stateMu.Lock()
	if cell.state >= actorStateStopping {
		cell.stateMu.Unlock()
		return
	}
	cell.state = actorStateStopping
	cell.stateMu.Unlock()

	// 全局邮箱不可用时强制退出
	if !s.enqueue(envelope{target: pid, message: &PoisonPill{}}) {
		cell.cancel()
	}
}

// StopGracefully 停止 Actor 并等待其退出
func (s *System) StopGracefully(pid *PID, timeout time.Duration) error {
	s.Stop(pid)

	select {
	case <-pid.Done():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for actor %s to stop", pid.ID)
	}
}

// Shutdown 关闭整个 Actor 系统
func (s *System) Shutdown() {
	s.ShutdownWithTimeout(30 * time.Second)
}

// ShutdownWithTimeout 带超时的关闭
func (s *System) ShutdownWithTimeout(timeout time.Duration) {
	if !s.isRunning.Load() {
		return
	}
	s.logger.Debug("actor system shutting down")

	pids := s.ListActors()
	for _, pid := range pids {
		s.Stop(pid)
	}

	deadline := time.After(timeout)
wait:
	for _, pid := range pids {
		select {
		case <-pid.Done():
		case <-deadline:
			s.logger.Warn("actor system shutdown timeout, forcing exit")
			break wait
		}
	}

	s.isRunning.Store(false)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("actor system shutdown complete")
	case <-time.After(timeout):
		s.logger.Warn("actor system goroutines did not exit in time")
	}
}

// dispatcher 全局消息分发器
func (s *System) dispatcher() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.mailbox:
			s.dispatchMessage(env)
		}
	}
}

// dispatchMessage 分发单条消息
//
// 目标邮箱满时分发器等待，形成背压；目标退出时消息转入死信。
func (s *System) dispatchMessage(env envelope) {
	s.actorsMu.RLock()
	cell, exists := s.actors[env.target.ID]
	s.actorsMu.RUnlock()

	if !exists || cell.pid != env.target {
		s.deadLetter(env)
		return
	}

	select {
	case cell.mailbox <- env:
	case <-cell.ctx.Done():
		s.deadLetter(env)
	case <-s.ctx.Done():
	}
}

// actorLoop Actor 消息处理循环
func (s *System) actorLoop(cell *actorCell) {
	defer s.wg.Done()
	defer s.cleanupActor(cell)

	cell.stateMu.Lock()
	if cell.state == actorStateIdle {
		cell.state = actorStateRunning
	}
	cell.stateMu.Unlock()

	for {
		select {
		case <-cell.ctx.Done():
			return
		case env := <-cell.mailbox:
			s.processMessage(cell, env)

			if _, ok := env.message.(*PoisonPill); ok {
				return
			}
		}
	}
}

// newContext 创建消息处理上下文
func (s *System) newContext(cell *actorCell, sender *PID, msg Message) *Context {
	return &Context{
		Self:    cell.pid,
		Sender:  sender,
		Parent:  cell.parent,
		system:  s,
		ctx:     cell.ctx,
		message: msg,
	}
}

// processMessage 处理单条消息
func (s *System) processMessage(cell *actorCell, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			if s.config.PanicHandler != nil {
				s.config.PanicHandler(cell.pid, env.message, r)
			} else {
				s.logger.Error("panic in actor",
					"actor", cell.pid.ID,
					"message", env.message.Kind(),
					"error", r,
					"stack", string(debug.Stack()))
			}
			s.handleFailure(cell, env.message, r)
		}
	}()

	ctx := s.newContext(cell, env.sender, env.message)

	if _, ok := env.message.(*PoisonPill); ok {
		cell.stoppingSent = true
		cell.actor.Receive(ctx, &Stopping{})
		return
	}

	cell.actor.Receive(ctx, env.message)
	atomic.AddInt64(&s.stats.ProcessedMsgs, 1)
}

// handleFailure 处理 Actor 失败
func (s *System) handleFailure(cell *actorCell, msg Message, err any) {
	supervisor := cell.supervisor
	if supervisor == nil && cell.parent != nil {
		s.actorsMu.RLock()
		if parentCell, ok := s.actors[cell.parent.ID]; ok {
			supervisor = parentCell.supervisor
		}
		s.actorsMu.RUnlock()
	}
	if supervisor == nil {
		supervisor = DefaultSupervisorStrategy()
	}

	s.applyDirective(cell, supervisor.HandleFailure(cell.pid, msg, err), err)
}

// applyDirective 应用监督指令
func (s *System) applyDirective(cell *actorCell, directive Directive, reason any) {
	switch directive {
	case DirectiveResume:
		s.logger.Debug("actor resumed after failure", "actor", cell.pid.ID)

	case DirectiveRestart:
		cell.restarts++
		s.safeReceive(cell, s.newContext(cell, nil, &Restarting{}), &Restarting{})
		s.Send(cell.pid, &Started{})
		s.logger.Info("actor restarted", "actor", cell.pid.ID, "restarts", cell.restarts)

	case DirectiveStop, DirectiveEscalate:
		// 父 Actor 需要知道子 Actor 已因失败退出，否则仍会把它当作存活
		if cell.parent != nil {
			s.Send(cell.parent, &Terminated{Who: cell.pid, Reason: reason, Directive: directive})
		}
		s.Stop(cell.pid)
	}
}

// cleanupActor 清理 Actor
func (s *System) cleanupActor(cell *actorCell) {
	ctx := s.newContext(cell, nil, &Stopped{})
	ctx.ctx = context.Background()

	// 强制退出时补发 Stopping，保证 Actor 有机会释放资源
	if !cell.stoppingSent {
		cell.stoppingSent = true
		s.safeReceive(cell, ctx, &Stopping{})
	}

	cell.stateMu.Lock()
	cell.state = actorStateStopped
	cell.stateMu.Unlock()

	s.safeReceive(cell, ctx, &Stopped{})

	s.actorsMu.Lock()
	children := make([]*PID, 0, len(cell.children))
	for _, child := range cell.children {
		children = append(children, child)
	}
	delete(s.actors, cell.pid.ID)
	if cell.parent != nil {
		if parentCell, ok := s.actors[cell.parent.ID]; ok {
			delete(parentCell.children, cell.pid.ID)
		}
	}
	s.actorsMu.Unlock()

	for _, child := range children {
		s.Stop(child)
	}

	cell.cancel()
	close(cell.pid.done)

	atomic.AddInt64(&s.stats.TotalActors, -1)
	s.logger.Debug("actor stopped", "actor", cell.pid.ID)
}

// safeReceive 在清理阶段投递消息，吞掉 panic
func (s *System) safeReceive(cell *actorCell, ctx *Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in actor cleanup", "actor", cell.pid.ID, "message", msg.Kind(), "error", r)
		}
	}()
	cell.actor.Receive(ctx, msg)
}

// deadLetterHandler 死信处理器
func (s *System) deadLetterHandler() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.deadLetters:
			if s.config.EnableDeadLetterLogging {
				s.logger.Debug("dead letter",
					"message", env.message.Kind(),
					"target", env.target.ID,
					"sender", env.sender)
			}
		}
	}
}

// Stats 获取统计信息
func (s *System) Stats() *SystemStats {
	return &SystemStats{
		TotalActors:   atomic.LoadInt64(&s.stats.TotalActors),
		TotalMessages: atomic.LoadInt64(&s.stats.TotalMessages),
		DeadLetters:   atomic.LoadInt64(&s.stats.DeadLetters),
		ProcessedMsgs: atomic.LoadInt64(&s.stats.ProcessedMsgs),
		StartTime:     s.stats.StartTime,
	}
}

// GetActor 获取 Actor
func (s *System) GetActor(name string) (*PID, bool) {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	if cell, ok := s.actors[name]; ok {
		return cell.pid, true
	}
	return nil, false
}

// ListActors 列出所有 Actor
func (s *System) ListActors() []*PID {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	pids := make([]*PID, 0, len(s.actors))
	for _, cell := range s.actors {
		pids = append(pids, cell.pid)
	}
	return pids
}

// Count 返回 Actor 数量
func (s *System) Count() int {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()
	return len(s.actors)
}

// IsRunning 检查系统是否运行中
func (s *System) IsRunning() bool {
	return s.isRunning.Load()
}
