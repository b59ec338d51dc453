package rowsync

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

// supervisor 驱动 table 与 row 生命周期的 Actor
//
// 所有字段只在 Receive 中读写（phase 除外，它允许外部读取），
// 由 Actor 串行处理保证一致性，无需加锁。
type supervisor struct {
	name        string
	tableLoader TableLoader
	rowsLoader  RowsLoader
	store       store.Store
	opts        *options

	phase atomic.Int32
	table *machine.Ref
	rows  *registry

	// 进入 executingRows 之前到达的变更事件，按到达顺序暂存
	deferred []actor.Message

	// initializing 期间等待各 row 回报 Start 之后的初始快照，收齐后统一广播
	initializing bool
	initWaiting  map[string]struct{}
	initSnaps    map[string]machine.Snapshot

	allFinishedSent bool
	seq             int

	// 已发出、尚未收到回报的保存快照请求，pending 按 row 计数，awaiting 为总数
	// draining 表示收到 Stop 后正在等待这些回报
	pending  map[string]int
	awaiting int
	draining bool

	// 未完成的持久化任务
	saves      sync.WaitGroup
	inflight   atomic.Int64
	saveCtx    context.Context
	saveCancel context.CancelFunc

	logger *slog.Logger
	stats  *actor.StatsCollector

	// 进入终态时关闭，err 在关闭前写入
	done chan struct{}
	err  error
}

func newSupervisor(name string, table TableLoader, rows RowsLoader, st store.Store, opts *options) *supervisor {
	saveCtx, saveCancel := context.WithCancel(context.Background())
	return &supervisor{
		name:        name,
		tableLoader: table,
		rowsLoader:  rows,
		store:       st,
		opts:        opts,
		rows:        newRegistry(),
		initWaiting: make(map[string]struct{}),
		initSnaps:   make(map[string]machine.Snapshot),
		pending:     make(map[string]int),
		saveCtx:     saveCtx,
		saveCancel:  saveCancel,
		logger:      opts.logger.With("supervisor", name),
		stats:       actor.NewStatsCollector(),
		done:        make(chan struct{}),
	}
}

// Phase 当前阶段，可并发读取
func (s *supervisor) Phase() Phase {
	return Phase(s.phase.Load())
}

// 快照请求的用途
const (
	tokenInit = "init"
	tokenSave = "save"
)

func (s *supervisor) setPhase(p Phase) {
	prev := Phase(s.phase.Swap(int32(p)))
	s.logger.Debug("phase changed", "from", prev, "to", p)
}

// Receive 实现 actor.Actor 接口
func (s *supervisor) Receive(ctx *actor.Context, msg actor.Message) {
	s.stats.RecordReceived()
	startTime := time.Now()

	defer func() {
		s.stats.RecordHandled(time.Since(startTime))
	}()

	switch m := msg.(type) {
	// ─────────────────────────────────────────────────────────────────────
	// 系统消息
	// ─────────────────────────────────────────────────────────────────────

	case *actor.Started:
		s.logger.Debug("supervisor started")
		s.loadTable(ctx)

	case *actor.Stopping:
		// 未经 Stop 事件被停止（超时、系统关闭）时同样拆除全部子 Actor
		s.finish(ctx, PhaseFailed, ErrStopped)

	case *actor.Stopped:
		s.logger.Debug("supervisor stopped", "phase", s.Phase())

	case *actor.Terminated:
		s.handleTerminated(ctx, m)

	// ─────────────────────────────────────────────────────────────────────
	// 异步任务结果
	// ─────────────────────────────────────────────────────────────────────

	case *tableLoadedMsg:
		s.handleTableLoaded(ctx, m)

	case *rowsLoadedMsg:
		s.handleRowsLoaded(ctx, m)

	case *machine.SnapshotReply:
		s.handleSnapshotReply(ctx, m)

	case *rowSavedMsg:
		s.handleRowSaved(m)

	case *drainTimeoutMsg:
		if s.draining {
			s.logger.Warn("snapshot replies not received before stop", "awaiting", s.awaiting)
			s.finish(ctx, PhaseDone, nil)
		}

	// ─────────────────────────────────────────────────────────────────────
	// 变更事件
	// ─────────────────────────────────────────────────────────────────────

	case *SaveRow, *DeleteRow, *RowFinished, *CreateRow, *Stop:
		s.dispatch(ctx, msg)

	// ─────────────────────────────────────────────────────────────────────
	// 查询
	// ─────────────────────────────────────────────────────────────────────

	case *GetPhaseMsg:
		actor.TrySend(m.ReplyChan, s.Phase())

	case *GetUnfinishedMsg:
		actor.TrySend(m.ReplyChan, s.rows.unfinishedIDs())

	case *ListRowsMsg:
		actor.TrySend(m.ReplyChan, s.rows.ids())

	case *GetRowSnapshotMsg:
		result := &GetRowSnapshotResult{}
		if ref, ok := s.rows.get(m.ID); ok {
			result.Snapshot = ref.Snapshot()
			result.Found = true
		}
		actor.TrySend(m.ReplyChan, result)

	default:
		s.logger.Warn("supervisor received unknown message", "type", msg.Kind())
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 加载阶段
// ═══════════════════════════════════════════════════════════════════════════

func (s *supervisor) loadTable(ctx *actor.Context) {
	self, loadCtx := ctx.Self, ctx.Context()
	go func() {
		def, err := safeLoad(func() (machine.Definition, error) {
			return s.tableLoader.LoadTable(loadCtx)
		})
		self.Tell(&tableLoadedMsg{def: def, err: err})
	}()
}

func (s *supervisor) loadRows(ctx *actor.Context) {
	self, loadCtx := ctx.Self, ctx.Context()
	go func() {
		defs, err := safeLoad(func() ([]machine.Definition, error) {
			return s.rowsLoader.LoadRows(loadCtx)
		})
		self.Tell(&rowsLoadedMsg{defs: defs, err: err})
	}()
}

// safeLoad 把 loader 的 panic 转为错误
func safeLoad[T any](load func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panic: %v", r)
		}
	}()
	return load()
}

func (s *supervisor) handleTableLoaded(ctx *actor.Context, m *tableLoadedMsg) {
	if s.Phase() != PhaseLoadingTable {
		return
	}
	if m.err != nil {
		s.fail(ctx, fmt.Errorf("%w: %w", ErrLoadTable, m.err))
		return
	}

	ref, err := machine.Spawn(ctx, m.def, s.childProps("table", m.def))
	if err != nil {
		s.fail(ctx, fmt.Errorf("%w: %w", ErrLoadTable, err))
		return
	}
	s.table = ref
	s.logger.Debug("table spawned", "table", ref.ID())

	s.setPhase(PhaseLoadingRows)
	s.loadRows(ctx)
}

func (s *supervisor) handleRowsLoaded(ctx *actor.Context, m *rowsLoadedMsg) {
	if s.Phase() != PhaseLoadingRows {
		return
	}
	if m.err != nil {
		s.fail(ctx, fmt.Errorf("%w: %w", ErrLoadRows, m.err))
		return
	}
	if err := validateDefinitions(m.defs); err != nil {
		s.fail(ctx, fmt.Errorf("%w: %w", ErrLoadRows, err))
		return
	}

	for _, def := range m.defs {
		if _, err := s.spawnRow(ctx, def); err != nil {
			s.fail(ctx, fmt.Errorf("%w: %w", ErrLoadRows, err))
			return
		}
	}
	s.logger.Debug("rows spawned", "count", s.rows.len())

	s.setPhase(PhaseStartingTable)
	s.table.Send(&Init{})
	s.enterExecuting(ctx)
}

// validateDefinitions 在 spawn 之前检查整批定义，失败时一个 row 也不创建
func validateDefinitions(defs []machine.Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		if def == nil {
			return fmt.Errorf("definition %d: %w", i, machine.ErrNilDefinition)
		}
		id := def.ID()
		if id == "" {
			return fmt.Errorf("definition %d: %w", i, machine.ErrEmptyID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRow, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// enterExecuting 进入稳定运行阶段
// 向每个 row 索取 Start 之后的快照，收齐后再广播并重放暂存事件
func (s *supervisor) enterExecuting(ctx *actor.Context) {
	s.setPhase(PhaseExecutingRows)
	s.initializing = true

	for _, id := range s.rows.ids() {
		ref, _ := s.rows.get(id)
		s.initWaiting[id] = struct{}{}
		ref.RequestSnapshot(ctx.Self, tokenInit)
	}
	if len(s.initWaiting) == 0 {
		s.completeInit(ctx)
	}
}

// completeInit 按 id 顺序广播初始快照，然后重放加载期间暂存的事件
func (s *supervisor) completeInit(ctx *actor.Context) {
	s.initializing = false

	for _, id := range slices.Sorted(maps.Keys(s.initSnaps)) {
		if s.rows.has(id) {
			s.table.Send(&RowInitialized{ID: id, Snapshot: s.initSnaps[id]})
		}
	}
	clear(s.initSnaps)

	deferred := s.deferred
	s.deferred = nil
	for _, msg := range deferred {
		s.dispatch(ctx, msg)
	}
}

func (s *supervisor) handleInitialSnapshot(ctx *actor.Context, id string, snap machine.Snapshot) {
	if s.initializing {
		if _, ok := s.initWaiting[id]; !ok {
			return
		}
		delete(s.initWaiting, id)
		s.initSnaps[id] = snap
		if len(s.initWaiting) == 0 {
			s.completeInit(ctx)
		}
		return
	}

	// 运行期间创建的 row
	if s.rows.has(id) {
		s.table.Send(&RowInitialized{ID: id, Snapshot: snap})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 稳定运行阶段
// ═══════════════════════════════════════════════════════════════════════════

func (s *supervisor) dispatch(ctx *actor.Context, msg actor.Message) {
	phase := s.Phase()
	if phase.IsTerminal() {
		s.logger.Warn("event dropped in terminal phase", "event", msg.Kind(), "phase", phase)
		return
	}
	if phase != PhaseExecutingRows || s.initializing {
		s.deferred = append(s.deferred, msg)
		return
	}
	if s.draining {
		s.logger.Warn("event dropped while stopping", "event", msg.Kind())
		return
	}

	switch m := msg.(type) {
	case *SaveRow:
		s.handleSaveRow(ctx, m.ID)
	case *DeleteRow:
		s.handleDeleteRow(m.ID)
	case *RowFinished:
		s.handleRowFinished(m.ID)
	case *CreateRow:
		s.handleCreateRow(ctx, m.Definition)
	case *Stop:
		s.handleStop(ctx, m.Reason)
	}
}

// handleStop 进入 done
// 仍有快照请求未回报时先等待回报（最多 saveJoinTimeout），保证 Stop 之前的 SaveRow 都被持久化
func (s *supervisor) handleStop(ctx *actor.Context, reason string) {
	s.logger.Info("stop requested", "reason", reason, "awaiting", s.awaiting)
	if s.awaiting == 0 {
		s.finish(ctx, PhaseDone, nil)
		return
	}

	s.draining = true
	self := ctx.Self
	time.AfterFunc(s.opts.saveJoinTimeout, func() {
		self.Tell(&drainTimeoutMsg{})
	})
}

// handleSaveRow 向 row 索取快照，回报到达后再持久化
func (s *supervisor) handleSaveRow(ctx *actor.Context, id string) {
	ref, ok := s.rows.get(id)
	if !ok {
		s.logger.Warn("save for unknown row ignored", "row", id)
		return
	}
	ref.RequestSnapshot(ctx.Self, tokenSave)
	s.pending[id]++
	s.awaiting++
}

func (s *supervisor) handleSnapshotReply(ctx *actor.Context, m *machine.SnapshotReply) {
	if s.Phase() != PhaseExecutingRows {
		return
	}

	switch m.Token {
	case tokenInit:
		s.handleInitialSnapshot(ctx, m.ID, m.Snapshot)

	case tokenSave:
		// 所属 row 已因失败被移除时，其请求已经结清
		if s.pending[m.ID] == 0 {
			s.logger.Debug("snapshot reply for released request ignored", "row", m.ID)
			return
		}
		s.release(m.ID, 1)
		s.persist(ctx.Self, m.ID, m.Snapshot)
		s.checkDrained(ctx)
	}
}

// release 结清 row 的 n 个保存请求
func (s *supervisor) release(id string, n int) {
	if n <= 0 {
		return
	}
	s.pending[id] -= n
	if s.pending[id] <= 0 {
		delete(s.pending, id)
	}
	s.awaiting = max(s.awaiting-n, 0)
}

// checkDrained Stop 之后所有快照回报都已到达时进入 done
func (s *supervisor) checkDrained(ctx *actor.Context) {
	if s.draining && s.awaiting == 0 {
		s.finish(ctx, PhaseDone, nil)
	}
}

// persist 在独立 goroutine 上保存快照，结果以 rowSavedMsg 回到 supervisor
func (s *supervisor) persist(self *actor.PID, id string, snap machine.Snapshot) {
	s.saves.Add(1)
	s.inflight.Add(1)
	go func() {
		defer s.saves.Done()
		defer s.inflight.Add(-1)

		err := s.store.Save(s.saveCtx, id, snap)
		self.Tell(&rowSavedMsg{id: id, err: err})
	}()
}

func (s *supervisor) handleRowSaved(m *rowSavedMsg) {
	if m.err == nil {
		s.logger.Debug("row saved", "row", m.id)
		return
	}

	s.logger.Error("row save failed", "row", m.id, "error", m.err)
	s.stats.RecordError(m.err)
	if s.table != nil && s.Phase() == PhaseExecutingRows {
		s.table.Send(&RowSaveFailed{ID: m.id, Err: m.err})
	}
}

// handleDeleteRow 停止并移除 row，同时移出未完成集合
// 不做完成检测
func (s *supervisor) handleDeleteRow(id string) {
	ref, ok := s.rows.remove(id)
	if !ok {
		s.logger.Warn("delete for unknown row ignored", "row", id)
		return
	}
	ref.Stop()
	s.logger.Debug("row deleted", "row", id)
}

func (s *supervisor) handleRowFinished(id string) {
	if !s.rows.has(id) {
		s.logger.Warn("finish for unknown row ignored", "row", id)
		return
	}
	if !s.rows.markFinished(id) {
		return
	}
	if s.allFinishedSent {
		s.logger.Debug("all rows finished again, notification already sent")
		return
	}
	s.allFinishedSent = true
	s.logger.Info("all rows finished")
	s.table.Send(&AllRowsFinished{})
}

func (s *supervisor) handleCreateRow(ctx *actor.Context, def machine.Definition) {
	ref, err := s.spawnRow(ctx, def)
	if err != nil {
		s.logger.Warn("create row rejected", "error", err)
		s.stats.RecordError(err)
		return
	}
	s.logger.Debug("row created", "row", ref.ID())
	ref.RequestSnapshot(ctx.Self, tokenInit)
}

// handleTerminated 子 Actor 因失败退出（监督指令 Stop 或 Escalate）
// table 失败时整个运行失败，row 失败时从注册表和未完成集合中移除
func (s *supervisor) handleTerminated(ctx *actor.Context, m *actor.Terminated) {
	if s.Phase().IsTerminal() {
		return
	}
	if s.table != nil && m.Who == s.table.PID() {
		s.logger.Error("table terminated", "reason", m.Reason, "directive", m.Directive)
		s.fail(ctx, fmt.Errorf("%w: %v", ErrTableTerminated, m.Reason))
		return
	}

	id, ok := s.rows.findByPID(m.Who)
	if !ok {
		return
	}
	ref, _ := s.rows.remove(id)
	ref.Stop()
	s.logger.Error("row terminated", "row", id, "reason", m.Reason, "directive", m.Directive)
	s.stats.RecordError(m)

	// 已退出的 row 不会再回报快照
	s.release(id, s.pending[id])
	if s.initializing {
		delete(s.initWaiting, id)
		delete(s.initSnaps, id)
		if len(s.initWaiting) == 0 {
			s.completeInit(ctx)
		}
	}
	s.checkDrained(ctx)
}

// ═══════════════════════════════════════════════════════════════════════════
// 子 Actor 管理与拆除
// ═══════════════════════════════════════════════════════════════════════════

func (s *supervisor) spawnRow(ctx *actor.Context, def machine.Definition) (*machine.Ref, error) {
	if def == nil {
		return nil, machine.ErrNilDefinition
	}
	if s.rows.has(def.ID()) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRow, def.ID())
	}

	ref, err := machine.Spawn(ctx, def, s.childProps("row", def))
	if err != nil {
		return nil, err
	}
	s.rows.add(ref)
	return ref, nil
}

// childProps Actor 名称带序号，删除后重建同 id 的 row 不会与仍在退出的旧 Actor 冲突
func (s *supervisor) childProps(kind string, def machine.Definition) *actor.Props {
	s.seq++
	id := ""
	if def != nil {
		id = def.ID()
	}

	var strategy actor.SupervisorStrategy
	if s.opts.childStrategy != nil {
		strategy = s.opts.childStrategy()
	}
	if strategy == nil {
		strategy = actor.DefaultSupervisorStrategy()
	}

	return actor.DefaultProps(fmt.Sprintf("%s/%s/%s#%d", s.name, kind, id, s.seq)).
		WithMailboxSize(s.opts.mailboxSize).
		WithSupervisor(strategy)
}

func (s *supervisor) fail(ctx *actor.Context, err error) {
	s.logger.Error("supervisor failed", "phase", s.Phase(), "error", err)
	s.stats.RecordError(err)
	s.finish(ctx, PhaseFailed, err)
}

// finish 拆除所有子 Actor 并进入终态，只生效一次
func (s *supervisor) finish(ctx *actor.Context, phase Phase, err error) {
	if s.Phase().IsTerminal() {
		return
	}

	s.stopAll()
	s.joinSaves()
	s.deferred = nil

	s.err = err
	s.setPhase(phase)
	close(s.done)

	s.logger.Info("supervisor finished", "phase", phase)
	ctx.StopSelf()
}

// stopAll 停止 table 和当前登记的全部 row
func (s *supervisor) stopAll() {
	for _, ref := range s.rows.drain() {
		ref.Stop()
	}
	if s.table != nil {
		s.table.Stop()
	}
}

// joinSaves 等待未完成的持久化任务，超时后取消剩余任务
func (s *supervisor) joinSaves() {
	defer s.saveCancel()

	if s.inflight.Load() == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		s.saves.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.opts.saveJoinTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("abandoning outstanding saves", "count", s.inflight.Load())
	}
}
