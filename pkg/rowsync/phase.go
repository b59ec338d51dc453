package rowsync

// Phase supervisor 所处阶段
type Phase int32

const (
	// PhaseLoadingTable 正在加载 table 定义（初始阶段）
	PhaseLoadingTable Phase = iota
	// PhaseLoadingRows 正在加载 row 定义
	PhaseLoadingRows
	// PhaseStartingTable 正在向 table 发送 Init
	PhaseStartingTable
	// PhaseExecutingRows 稳定运行阶段
	PhaseExecutingRows
	// PhaseFailed 加载失败或被外部终止（终态）
	PhaseFailed
	// PhaseDone 收到 Stop 后正常结束（终态）
	PhaseDone
)

// String 返回阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseLoadingTable:
		return "loadingTableMachine"
	case PhaseLoadingRows:
		return "loadingRowsMachines"
	case PhaseStartingTable:
		return "startingTableMachine"
	case PhaseExecutingRows:
		return "executingRows"
	case PhaseFailed:
		return "failed"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// IsTerminal 是否为终态
func (p Phase) IsTerminal() bool {
	return p == PhaseFailed || p == PhaseDone
}
