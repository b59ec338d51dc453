package rowsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
)

// spawnRefs 在一个父 Actor 下创建 row 句柄
func spawnRefs(t *testing.T, ids ...string) []*machine.Ref {
	t.Helper()

	sys := actor.NewSystemWithConfig("registry-test", &actor.SystemConfig{Logger: testLogger()})
	t.Cleanup(sys.Shutdown)

	rec := newRecorder()
	out := make(chan []*machine.Ref, 1)
	_, err := sys.Spawn(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		if _, ok := msg.(*actor.Started); !ok {
			return
		}
		refs := make([]*machine.Ref, 0, len(ids))
		for _, id := range ids {
			ref, err := machine.Spawn(ctx, rowDef(id, rec), actor.DefaultProps("row/"+id))
			if err != nil {
				out <- nil
				return
			}
			refs = append(refs, ref)
		}
		out <- refs
	}), "parent")
	require.NoError(t, err)

	select {
	case refs := <-out:
		require.Len(t, refs, len(ids))
		return refs
	case <-time.After(waitFor):
		t.Fatal("spawn timed out")
		return nil
	}
}

func TestRegistryFinishTransition(t *testing.T) {
	refs := spawnRefs(t, "b", "a")
	r := newRegistry()
	for _, ref := range refs {
		r.add(ref)
	}

	assert.Equal(t, []string{"a", "b"}, r.ids())
	assert.Equal(t, []string{"a", "b"}, r.unfinishedIDs())
	assert.Equal(t, 2, r.len())

	assert.False(t, r.markFinished("a"))
	assert.False(t, r.markFinished("a"), "already finished")
	assert.False(t, r.markFinished("missing"))
	assert.True(t, r.markFinished("b"), "set became empty")
	assert.False(t, r.markFinished("b"))

	assert.Empty(t, r.unfinishedIDs())
	assert.Equal(t, []string{"a", "b"}, r.ids())
}

func TestRegistryRemoveUnmarks(t *testing.T) {
	refs := spawnRefs(t, "a", "b")
	r := newRegistry()
	for _, ref := range refs {
		r.add(ref)
	}

	ref, ok := r.remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", ref.ID())
	assert.False(t, r.has("a"))
	assert.Equal(t, []string{"b"}, r.unfinishedIDs())

	_, ok = r.remove("a")
	assert.False(t, ok)

	// 移除最后一个未完成 id 不会报告集合变空
	_, ok = r.remove("b")
	require.True(t, ok)
	assert.Empty(t, r.unfinishedIDs())
	assert.False(t, r.markFinished("b"))
}

func TestRegistryFindByPIDAndDrain(t *testing.T) {
	refs := spawnRefs(t, "a", "b", "c")
	r := newRegistry()
	for _, ref := range refs {
		r.add(ref)
	}

	id, ok := r.findByPID(refs[1].PID())
	require.True(t, ok)
	assert.Equal(t, "b", id)

	_, ok = r.findByPID(nil)
	assert.False(t, ok)

	got, ok := r.get("c")
	require.True(t, ok)
	assert.Same(t, refs[2], got)

	drained := r.drain()
	require.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].ID())
	assert.Equal(t, "c", drained[2].ID())
	assert.Zero(t, r.len())
	assert.Empty(t, r.unfinishedIDs())
}

func TestPhaseNames(t *testing.T) {
	tests := []struct {
		phase    Phase
		name     string
		terminal bool
	}{
		{PhaseLoadingTable, "loadingTableMachine", false},
		{PhaseLoadingRows, "loadingRowsMachines", false},
		{PhaseStartingTable, "startingTableMachine", false},
		{PhaseExecutingRows, "executingRows", false},
		{PhaseFailed, "failed", true},
		{PhaseDone, "done", true},
		{Phase(99), "unknown", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.phase.String())
		assert.Equal(t, tt.terminal, tt.phase.IsTerminal())
	}
}
