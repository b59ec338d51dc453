package actor_test

import (
	"fmt"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/actor"
)

// CountMessage 计数器消息
type CountMessage struct {
	Value int
}

func (m *CountMessage) Kind() string { return "count" }

// Example_basic 演示 Actor 系统的基本使用
func Example_basic() {
	sys := actor.NewSystem("example")
	defer sys.Shutdown()

	pid, err := sys.Spawn(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		switch m := msg.(type) {
		case *actor.Started:
			fmt.Println("Actor started")
		case *CountMessage:
			fmt.Printf("Count: %d\n", m.Value)
		case *actor.Stopping:
			fmt.Println("Actor stopping")
		}
	}), "greeter")
	if err != nil {
		fmt.Println(err)
		return
	}

	pid.Tell(&CountMessage{Value: 1})
	pid.Tell(&CountMessage{Value: 2})
	sys.Stop(pid)
	<-pid.Done()

	// Output:
	// Actor started
	// Count: 1
	// Count: 2
	// Actor stopping
}
