package rowsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// recorder 记录 table 收到的事件与各状态机的停止次数
type recorder struct {
	mu     sync.Mutex
	events []actor.Message
	stops  map[string]int

	spawned atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{stops: make(map[string]int)}
}

func (r *recorder) record(msg actor.Message) {
	r.mu.Lock()
	r.events = append(r.events, msg)
	r.mu.Unlock()
}

func (r *recorder) stopped(id string) {
	r.mu.Lock()
	r.stops[id]++
	r.mu.Unlock()
}

// labels 以便于断言的形式返回 table 收到的事件
func (r *recorder) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, msg := range r.events {
		switch m := msg.(type) {
		case *Init:
			out = append(out, "init")
		case *RowInitialized:
			out = append(out, "row_initialized:"+m.ID)
		case *AllRowsFinished:
			out = append(out, "all_rows_finished")
		case *RowSaveFailed:
			out = append(out, "row_save_failed:"+m.ID)
		default:
			out = append(out, msg.Kind())
		}
	}
	return out
}

func (r *recorder) count(label string) int {
	n := 0
	for _, l := range r.labels() {
		if l == label {
			n++
		}
	}
	return n
}

func (r *recorder) rowInitialized(id string) (machine.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.events {
		if m, ok := msg.(*RowInitialized); ok && m.ID == id {
			return m.Snapshot, true
		}
	}
	return machine.Snapshot{}, false
}

// rowInitializedAll 按到达顺序返回某个 row 的全部初始快照
func (r *recorder) rowInitializedAll(id string) []machine.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []machine.Snapshot
	for _, msg := range r.events {
		if m, ok := msg.(*RowInitialized); ok && m.ID == id {
			out = append(out, m.Snapshot)
		}
	}
	return out
}

func (r *recorder) stopCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.stops))
	for k, v := range r.stops {
		out[k] = v
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// table
// ─────────────────────────────────────────────────────────────────────────────

type tableMachine struct {
	rec         *recorder
	stopOnAll   bool
	panicOnInit bool
	inited      bool
}

func (m *tableMachine) Start(*actor.Context) {}

func (m *tableMachine) Handle(ctx *actor.Context, ev actor.Message) machine.Snapshot {
	m.rec.record(ev)
	switch ev.(type) {
	case *Init:
		if m.panicOnInit {
			panic("table init failed")
		}
		m.inited = true
	case *AllRowsFinished:
		if m.stopOnAll {
			ctx.TellParent(&Stop{Reason: "all rows finished"})
		}
	}
	return m.Snapshot()
}

func (m *tableMachine) Snapshot() machine.Snapshot {
	value := "waiting"
	if m.inited {
		value = "running"
	}
	return machine.Snapshot{ID: "table", Value: value}
}

func (m *tableMachine) Done() bool { return false }

func (m *tableMachine) Stop() { m.rec.stopped("table") }

type tableOption func(*tableMachine)

func stopOnAllFinished() tableOption {
	return func(m *tableMachine) { m.stopOnAll = true }
}

func panicOnInit() tableOption {
	return func(m *tableMachine) { m.panicOnInit = true }
}

func tableDef(rec *recorder, opts ...tableOption) machine.Definition {
	return machine.NewDefinition("table", func(string) machine.Machine {
		m := &tableMachine{rec: rec}
		for _, opt := range opts {
			opt(m)
		}
		return m
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// row
// ─────────────────────────────────────────────────────────────────────────────

type rowMachine struct {
	id  string
	rec *recorder

	value string
	n     int
	done  bool

	// editOnStart 非空时在 Start 中改写 value 并请求保存
	editOnStart  string
	panicOnStart bool

	// panicOnSnapshot 大于 0 时第 panicOnSnapshot 次取快照会 panic
	panicOnSnapshot int
	snapshots       int
}

func (m *rowMachine) Start(ctx *actor.Context) {
	if m.panicOnStart {
		panic("row start failed")
	}
	if m.editOnStart != "" {
		m.value = m.editOnStart
		m.n++
		ctx.TellParent(&SaveRow{ID: m.id})
	}
}

func (m *rowMachine) Handle(_ *actor.Context, _ actor.Message) machine.Snapshot {
	return m.Snapshot()
}

func (m *rowMachine) Snapshot() machine.Snapshot {
	m.snapshots++
	if m.snapshots == m.panicOnSnapshot {
		panic("snapshot failed")
	}
	return machine.Snapshot{
		ID:      m.id,
		Value:   m.value,
		Context: map[string]any{"n": m.n},
		Done:    m.done,
	}
}

func (m *rowMachine) Done() bool { return m.done }

func (m *rowMachine) Stop() { m.rec.stopped(m.id) }

type rowOption func(*rowMachine)

func editOnStart(value string) rowOption {
	return func(m *rowMachine) { m.editOnStart = value }
}

func panicOnStart() rowOption {
	return func(m *rowMachine) { m.panicOnStart = true }
}

func panicOnSnapshot(call int) rowOption {
	return func(m *rowMachine) { m.panicOnSnapshot = call }
}

func restoredFrom(snap machine.Snapshot) rowOption {
	return func(m *rowMachine) {
		m.value = snap.Value
		m.done = snap.Done
		if n, ok := snap.Context["n"].(int); ok {
			m.n = n
		}
	}
}

func rowDef(id string, rec *recorder, opts ...rowOption) machine.Definition {
	return machine.NewDefinition(id, func(id string) machine.Machine {
		rec.spawned.Add(1)
		m := &rowMachine{id: id, rec: rec, value: "new"}
		for _, opt := range opts {
			opt(m)
		}
		return m
	})
}

func rowDefs(rec *recorder, ids ...string) []machine.Definition {
	defs := make([]machine.Definition, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, rowDef(id, rec))
	}
	return defs
}

// ─────────────────────────────────────────────────────────────────────────────
// 辅助函数
// ─────────────────────────────────────────────────────────────────────────────

const waitFor = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDB 在后台运行 Start，等待 supervisor 创建后返回结果通道
func startDB(t *testing.T, db *DB) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.Start(context.Background())
	}()

	select {
	case <-db.Ready():
	case <-time.After(waitFor):
		t.Fatal("supervisor was not spawned")
	}
	return errCh
}

func waitPhase(t *testing.T, db *DB, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return db.Phase() == phase
	}, waitFor, 5*time.Millisecond, "phase %s not reached, current %s", phase, db.Phase())
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(waitFor * 2):
		t.Fatal("Start did not return")
		return nil
	}
}

// failingStore 所有写入都失败的存储
type failingStore struct{}

func (failingStore) Save(context.Context, string, machine.Snapshot) error {
	return fmt.Errorf("disk full")
}

func (failingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (failingStore) Read(_ context.Context, id string) (machine.Snapshot, error) {
	return machine.Snapshot{}, fmt.Errorf("read %s: not supported", id)
}

func (failingStore) Delete(context.Context, string) error { return nil }

func (failingStore) ListIDs(context.Context) ([]string, error) { return nil, nil }
