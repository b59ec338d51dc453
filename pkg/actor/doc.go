// Package actor 提供托管 table/row 状态机的本地 Actor 运行时
//
// 每个 Actor 是独立的计算单元：
// • 拥有私有状态（无需锁保护）
// • 通过消息邮箱（mailbox）接收消息
// • 消息处理串行化（一次处理一条）
// • 可以创建子 Actor、向父 Actor 发送消息、停止子 Actor
//
// # 核心组件
//
// [System] 是 Actor 系统的入口，管理所有 Actor 的生命周期：
//
//	sys := actor.NewSystem("rowsync")
//	defer sys.Shutdown()
//
// [Actor] 接口定义消息处理行为，[ActorFunc] 提供函数式快捷方式。
//
// [PID] 是 Actor 的唯一标识。[PID.Tell] 异步发送消息（fire-and-forget），
// [PID.Done] 在 Actor 完全退出后关闭。
//
// [Context] 提供 Actor 运行时上下文，支持回复消息、创建子 Actor、通知父 Actor。
//
// # 顺序与停止
//
// 所有消息经过单个分发器，同一发送者发往同一接收者的消息保持发送顺序。
// [System.Stop] 是幂等的：排在 PoisonPill 之前的消息先被处理，随后 Actor 收到
// [Stopping]，清理阶段收到 [Stopped]，子 Actor 随父 Actor 一起停止。
//
// # 监督策略
//
// Receive 中的 panic 会被恢复并交给 [SupervisorStrategy]。[OneForOneStrategy]
// 只处理失败的 Actor；指令 [Directive]：DirectiveResume 丢弃消息继续运行，
// DirectiveRestart 重启，超过重启次数后降级为 Stop。DirectiveStop 与 DirectiveEscalate
// 都会向父 Actor 发送 [Terminated] 后停止。
package actor
