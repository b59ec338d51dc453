package machine

import "github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"

// SnapshotRequest 请求状态机回报当前快照
// Token 原样带回 [SnapshotReply]，供请求方区分用途
type SnapshotRequest struct {
	ReplyTo *actor.PID
	Token   string
}

// Kind 实现 actor.Message 接口
func (m *SnapshotRequest) Kind() string { return "machine.snapshot_request" }

// SnapshotReply 快照回报
type SnapshotReply struct {
	ID       string
	Token    string
	Snapshot Snapshot
}

// Kind 实现 actor.Message 接口
func (m *SnapshotReply) Kind() string { return "machine.snapshot_reply" }

// Snapshot 状态机在某一时刻的可序列化状态
//
// ID 与持久化存储中的键一致，是快照与运行中 row 之间唯一的关联。
type Snapshot struct {
	ID      string         `json:"id" yaml:"id"`
	Value   string         `json:"value" yaml:"value"`
	Context map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
	Done    bool           `json:"done,omitempty" yaml:"done,omitempty"`
}

// Clone 深拷贝快照
// 嵌套的 map[string]any 与 []any 会被逐层复制，其余值按值复制
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Context != nil {
		out.Context = cloneMap(s.Context)
	}
	return out
}

// Get 读取上下文字段
func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s.Context[key]
	return v, ok
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
