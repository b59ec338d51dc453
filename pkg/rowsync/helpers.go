package rowsync

import (
	"time"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// ═══════════════════════════════════════════════════════════════════════════
// 查询便捷函数
// ═══════════════════════════════════════════════════════════════════════════
//
// supervisor 进入终态后会停止自身，此后的查询在超时后返回 context.DeadlineExceeded。

// DoGetPhase 查询当前阶段
func DoGetPhase(pid *actor.PID, timeout time.Duration) (Phase, error) {
	replyCh := make(chan Phase, 1)
	pid.Tell(&GetPhaseMsg{ReplyChan: replyCh})
	return actor.Await[Phase](replyCh, timeout)
}

// DoGetUnfinished 查询未完成的 row id
func DoGetUnfinished(pid *actor.PID, timeout time.Duration) ([]string, error) {
	replyCh := make(chan []string, 1)
	pid.Tell(&GetUnfinishedMsg{ReplyChan: replyCh})
	return actor.Await[[]string](replyCh, timeout)
}

// DoListRows 查询存活的 row id
func DoListRows(pid *actor.PID, timeout time.Duration) ([]string, error) {
	replyCh := make(chan []string, 1)
	pid.Tell(&ListRowsMsg{ReplyChan: replyCh})
	return actor.Await[[]string](replyCh, timeout)
}

// DoGetRowSnapshot 查询 row 最近的快照
func DoGetRowSnapshot(pid *actor.PID, id string, timeout time.Duration) (machine.Snapshot, bool, error) {
	replyCh := make(chan *GetRowSnapshotResult, 1)
	pid.Tell(&GetRowSnapshotMsg{ID: id, ReplyChan: replyCh})

	result, err := actor.Await[*GetRowSnapshotResult](replyCh, timeout)
	if err != nil {
		return machine.Snapshot{}, false, err
	}
	return result.Snapshot, result.Found, nil
}

// DoSaveRow 请求持久化 row（fire-and-forget）
func DoSaveRow(pid *actor.PID, id string) {
	pid.Tell(&SaveRow{ID: id})
}

// DoDeleteRow 请求删除 row（fire-and-forget）
func DoDeleteRow(pid *actor.PID, id string) {
	pid.Tell(&DeleteRow{ID: id})
}

// DoStop 请求结束运行（fire-and-forget）
func DoStop(pid *actor.PID, reason string) {
	pid.Tell(&Stop{Reason: reason})
}
