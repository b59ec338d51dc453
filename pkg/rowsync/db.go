package rowsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

const (
	// DefaultTimeout 等待终态的默认超时
	DefaultTimeout = 10 * time.Second
	// DefaultSaveJoinTimeout 拆除时等待未完成保存的默认时长
	DefaultSaveJoinTimeout = 2 * time.Second
	// DefaultName 默认 supervisor 名称
	DefaultName = "rowsync"
)

type options struct {
	name            string
	timeout         time.Duration
	saveJoinTimeout time.Duration
	logger          *slog.Logger
	mailboxSize     int
	childStrategy   func() actor.SupervisorStrategy
}

func defaultOptions() *options {
	return &options{
		name:            DefaultName,
		timeout:         DefaultTimeout,
		saveJoinTimeout: DefaultSaveJoinTimeout,
		logger:          slog.Default(),
	}
}

// Option DB 配置选项
type Option func(*options)

// WithTimeout 设置等待终态的超时
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSaveJoinTimeout 设置拆除时等待未完成保存的时长
func WithSaveJoinTimeout(d time.Duration) Option {
	return func(o *options) {
		o.saveJoinTimeout = d
	}
}

// WithLogger 设置日志器
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMailboxSize 设置每个 Actor 的邮箱大小，0 使用运行时默认值
func WithMailboxSize(size int) Option {
	return func(o *options) {
		o.mailboxSize = size
	}
}

// WithChildStrategy 设置 table 与 row 的监督策略工厂
//
// 每创建一个子 Actor 调用一次 newStrategy，重启计数窗口因此按子 Actor 独立计算。
// 默认使用 actor.DefaultSupervisorStrategy。子 Actor 最终被停止（重启次数用尽、
// Stop 或 Escalate）时，row 会被移除，table 会使运行失败。
func WithChildStrategy(newStrategy func() actor.SupervisorStrategy) Option {
	return func(o *options) {
		o.childStrategy = newStrategy
	}
}

// WithName 设置 supervisor 名称，也是 Actor 系统名与子 Actor 名前缀
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// DB 顶层句柄
//
// 一个 DB 只能 Start 一次：构造 supervisor，等待它进入终态或超时。
//
// Thread Safety: 所有方法可并发调用。
type DB struct {
	tableLoader TableLoader
	rowsLoader  RowsLoader
	store       store.Store
	opts        *options

	mu      sync.Mutex
	started bool
	sys     *actor.System
	sup     *supervisor
	pid     *actor.PID
	ready   chan struct{}
}

// New 创建 DB
func New(table TableLoader, rows RowsLoader, st store.Store, opts ...Option) (*DB, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: table loader is nil", ErrInvalidConfig)
	}
	if rows == nil {
		return nil, fmt.Errorf("%w: rows loader is nil", ErrInvalidConfig)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.name == "":
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	case o.timeout <= 0:
		return nil, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, o.timeout)
	case o.saveJoinTimeout < 0:
		return nil, fmt.Errorf("%w: save join timeout cannot be negative, got %s", ErrInvalidConfig, o.saveJoinTimeout)
	case o.mailboxSize < 0:
		return nil, fmt.Errorf("%w: mailbox size cannot be negative, got %d", ErrInvalidConfig, o.mailboxSize)
	}

	return &DB{
		tableLoader: table,
		rowsLoader:  rows,
		store:       st,
		opts:        o,
		ready:       make(chan struct{}),
	}, nil
}

// Start 启动 supervisor 并阻塞到终态、超时或 ctx 取消
//
// 返回值：
//   - done → nil
//   - failed → 加载错误（errors.Is 匹配 ErrLoadTable / ErrLoadRows）
//   - 超时 → ErrTimeout，此时 supervisor 及其全部子 Actor 已被停止
//   - ctx 取消 → ctx.Err()，同样会停止全部 Actor
func (d *DB) Start(ctx context.Context) error {
	sup, pid, err := d.spawn()
	if err != nil {
		return err
	}
	defer d.sys.ShutdownWithTimeout(d.grace())

	timer := time.NewTimer(d.opts.timeout)
	defer timer.Stop()

	select {
	case <-sup.done:
		return sup.err

	case <-timer.C:
		phase := sup.Phase()
		d.opts.logger.Warn("timed out waiting for terminal phase",
			"supervisor", d.opts.name, "timeout", d.opts.timeout, "phase", phase)
		d.teardown(pid)
		return fmt.Errorf("%w: %s elapsed in phase %s", ErrTimeout, d.opts.timeout, phase)

	case <-ctx.Done():
		d.teardown(pid)
		return ctx.Err()
	}
}

func (d *DB) spawn() (*supervisor, *actor.PID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil, nil, ErrAlreadyStarted
	}
	d.started = true

	cfg := actor.DefaultSystemConfig()
	cfg.Logger = d.opts.logger
	if d.opts.mailboxSize > 0 {
		cfg.DefaultActorMailboxSize = d.opts.mailboxSize
	}
	sys := actor.NewSystemWithConfig(d.opts.name, cfg)

	sup := newSupervisor(d.opts.name, d.tableLoader, d.rowsLoader, d.store, d.opts)
	props := actor.DefaultProps(d.opts.name).
		WithMailboxSize(d.opts.mailboxSize).
		WithSupervisor(actor.StoppingSupervisorStrategy())

	pid, err := sys.SpawnWithProps(sup, props)
	if err != nil {
		sys.Shutdown()
		return nil, nil, fmt.Errorf("spawn supervisor: %w", err)
	}

	d.sys, d.sup, d.pid = sys, sup, pid
	close(d.ready)
	return sup, pid, nil
}

// teardown 停止 supervisor，等待它拆除子 Actor
func (d *DB) teardown(pid *actor.PID) {
	d.sys.Stop(pid)

	timer := time.NewTimer(d.grace())
	defer timer.Stop()

	select {
	case <-pid.Done():
	case <-timer.C:
		d.opts.logger.Warn("supervisor did not stop in time", "supervisor", d.opts.name)
	}
}

func (d *DB) grace() time.Duration {
	return d.opts.saveJoinTimeout + time.Second
}

// Ready 在 supervisor 创建后关闭
func (d *DB) Ready() <-chan struct{} {
	return d.ready
}

// PID 返回 supervisor 的 PID，未启动时为 nil
func (d *DB) PID() *actor.PID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pid
}

// Send 向 supervisor 发送事件（fire-and-forget）
func (d *DB) Send(event actor.Message) error {
	pid := d.PID()
	if pid == nil {
		return ErrNotStarted
	}
	pid.Tell(event)
	return nil
}

// Stop 请求正常结束，supervisor 进入 done
func (d *DB) Stop(reason string) error {
	return d.Send(&Stop{Reason: reason})
}

// Phase 返回当前阶段，未启动时为 PhaseLoadingTable
func (d *DB) Phase() Phase {
	d.mu.Lock()
	sup := d.sup
	d.mu.Unlock()

	if sup == nil {
		return PhaseLoadingTable
	}
	return sup.Phase()
}

// Stats 返回 supervisor 的统计信息
func (d *DB) Stats() *actor.ActorStats {
	d.mu.Lock()
	sup := d.sup
	d.mu.Unlock()

	if sup == nil {
		return &actor.ActorStats{}
	}
	return sup.stats.Stats()
}
