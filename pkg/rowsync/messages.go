package rowsync

import (
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// ═══════════════════════════════════════════════════════════════════════════
// 发往 table 的事件
// ═══════════════════════════════════════════════════════════════════════════

// Init 启动 table，fire-and-forget，不等待确认
type Init struct{}

// Kind 实现 actor.Message 接口
func (m *Init) Kind() string { return "rowsync.init" }

// RowInitialized 通知 table 一个 row 已就绪，携带该 row 执行完 Start 之后的快照
//
// 进入 executingRows 时对每个已 spawn 的 row 各发一次，CreateRow 成功后再发一次。
// 已因失败被移除的 row 不再发送。
type RowInitialized struct {
	ID       string
	Snapshot machine.Snapshot
}

// Kind 实现 actor.Message 接口
func (m *RowInitialized) Kind() string { return "rowsync.row_initialized" }

// AllRowsFinished 所有 row 都已完成，每次运行最多发送一次
type AllRowsFinished struct{}

// Kind 实现 actor.Message 接口
func (m *AllRowsFinished) Kind() string { return "rowsync.all_rows_finished" }

// RowSaveFailed 保存 row 快照失败
type RowSaveFailed struct {
	ID  string
	Err error
}

// Kind 实现 actor.Message 接口
func (m *RowSaveFailed) Kind() string { return "rowsync.row_save_failed" }

// ═══════════════════════════════════════════════════════════════════════════
// 发往 supervisor 的变更事件
// ═══════════════════════════════════════════════════════════════════════════

// SaveRow 持久化 row 当前快照（异步）
type SaveRow struct {
	ID string
}

// Kind 实现 actor.Message 接口
func (m *SaveRow) Kind() string { return "rowsync.save_row" }

// DeleteRow 停止并移除 row
//
// 同时把 id 移出未完成集合，但不会触发 AllRowsFinished。
type DeleteRow struct {
	ID string
}

// Kind 实现 actor.Message 接口
func (m *DeleteRow) Kind() string { return "rowsync.delete_row" }

// RowFinished row 完成信号
type RowFinished struct {
	ID string
}

// Kind 实现 actor.Message 接口
func (m *RowFinished) Kind() string { return "rowsync.row_finished" }

// CreateRow 运行时新建 row，键为 Definition.ID()
type CreateRow struct {
	Definition machine.Definition
}

// Kind 实现 actor.Message 接口
func (m *CreateRow) Kind() string { return "rowsync.create_row" }

// Stop 结束运行，进入 done
type Stop struct {
	Reason string
}

// Kind 实现 actor.Message 接口
func (m *Stop) Kind() string { return "rowsync.stop" }

// ═══════════════════════════════════════════════════════════════════════════
// 查询消息（任意阶段都会应答）
// ═══════════════════════════════════════════════════════════════════════════

// GetPhaseMsg 查询当前阶段
type GetPhaseMsg struct {
	ReplyChan chan Phase
}

// Kind 实现 actor.Message 接口
func (m *GetPhaseMsg) Kind() string { return "rowsync.get_phase" }

// GetUnfinishedMsg 查询未完成的 row id（有序）
type GetUnfinishedMsg struct {
	ReplyChan chan []string
}

// Kind 实现 actor.Message 接口
func (m *GetUnfinishedMsg) Kind() string { return "rowsync.get_unfinished" }

// ListRowsMsg 查询存活的 row id（有序）
type ListRowsMsg struct {
	ReplyChan chan []string
}

// Kind 实现 actor.Message 接口
func (m *ListRowsMsg) Kind() string { return "rowsync.list_rows" }

// GetRowSnapshotMsg 查询 row 快照
type GetRowSnapshotMsg struct {
	ID        string
	ReplyChan chan *GetRowSnapshotResult
}

// Kind 实现 actor.Message 接口
func (m *GetRowSnapshotMsg) Kind() string { return "rowsync.get_row_snapshot" }

// GetRowSnapshotResult 快照查询结果
type GetRowSnapshotResult struct {
	Snapshot machine.Snapshot
	Found    bool
}

// ═══════════════════════════════════════════════════════════════════════════
// 内部消息（异步任务结果回到 supervisor）
// ═══════════════════════════════════════════════════════════════════════════

type tableLoadedMsg struct {
	def machine.Definition
	err error
}

func (m *tableLoadedMsg) Kind() string { return "rowsync.table_loaded" }

type rowsLoadedMsg struct {
	defs []machine.Definition
	err  error
}

func (m *rowsLoadedMsg) Kind() string { return "rowsync.rows_loaded" }

type rowSavedMsg struct {
	id  string
	err error
}

func (m *rowSavedMsg) Kind() string { return "rowsync.row_saved" }

// drainTimeoutMsg Stop 之后等待快照回报超时
type drainTimeoutMsg struct{}

func (m *drainTimeoutMsg) Kind() string { return "rowsync.drain_timeout" }
