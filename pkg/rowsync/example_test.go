package rowsync_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/machine"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/rowsync"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

// task 一个 Start 后立即完成的 row
type task struct {
	id   string
	done bool
}

func (t *task) Start(ctx *actor.Context) {
	t.done = true
	ctx.TellParent(&rowsync.SaveRow{ID: t.id})
	ctx.TellParent(&rowsync.RowFinished{ID: t.id})
}

func (t *task) Handle(*actor.Context, actor.Message) machine.Snapshot { return t.Snapshot() }

func (t *task) Snapshot() machine.Snapshot {
	value := "pending"
	if t.done {
		value = "done"
	}
	return machine.Snapshot{ID: t.id, Value: value, Done: t.done}
}

func (t *task) Done() bool { return t.done }

// board 所有 row 完成后结束运行
type board struct {
	rows int
}

func (b *board) Start(*actor.Context) {}

func (b *board) Handle(ctx *actor.Context, ev actor.Message) machine.Snapshot {
	switch ev.(type) {
	case *rowsync.RowInitialized:
		b.rows++
	case *rowsync.AllRowsFinished:
		ctx.TellParent(&rowsync.Stop{Reason: "all rows finished"})
	}
	return b.Snapshot()
}

func (b *board) Snapshot() machine.Snapshot {
	return machine.Snapshot{ID: "board", Value: "running", Context: map[string]any{"rows": b.rows}}
}

func (b *board) Done() bool { return false }

func Example() {
	st := store.NewMemoryStore()

	newTask := func(id string) machine.Definition {
		return machine.NewDefinition(id, func(id string) machine.Machine { return &task{id: id} })
	}

	db, err := rowsync.New(
		rowsync.StaticTable(machine.NewDefinition("board", func(string) machine.Machine { return &board{} })),
		rowsync.StaticRows(newTask("t1"), newTask("t2")),
		st,
		rowsync.WithTimeout(5*time.Second),
		rowsync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := db.Start(context.Background()); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("Phase:", db.Phase())
	ids, _ := st.ListIDs(context.Background())
	fmt.Println("Saved:", ids)
	// Output:
	// Phase: done
	// Saved: [t1 t2]
}
