package rowsync

import "errors"

var (
	// ErrLoadTable Table Loader 失败
	ErrLoadTable = errors.New("rowsync: load table failed")
	// ErrLoadRows Rows Loader 失败
	ErrLoadRows = errors.New("rowsync: load rows failed")
	// ErrTimeout 在超时前没有进入终态
	ErrTimeout = errors.New("rowsync: timed out waiting for terminal phase")
	// ErrStopped supervisor 在进入终态前被外部停止
	ErrStopped = errors.New("rowsync: supervisor stopped")
	// ErrAlreadyStarted 重复启动
	ErrAlreadyStarted = errors.New("rowsync: already started")
	// ErrNotStarted 尚未启动
	ErrNotStarted = errors.New("rowsync: not started")
	// ErrInvalidConfig 构造参数无效
	ErrInvalidConfig = errors.New("rowsync: invalid config")
	// ErrDuplicateRow row id 与存活的 row 冲突
	ErrDuplicateRow = errors.New("rowsync: duplicate row id")
	// ErrTableTerminated table Actor 异常终止
	ErrTableTerminated = errors.New("rowsync: table terminated")
)
