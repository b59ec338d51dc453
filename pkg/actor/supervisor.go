package actor

import (
	"sync"
	"time"
)

// Directive 监督指令
type Directive int

const (
	// DirectiveResume 恢复 Actor，丢弃引发失败的消息继续处理
	DirectiveResume Directive = iota
	// DirectiveRestart 重启 Actor
	DirectiveRestart
	// DirectiveStop 停止 Actor
	DirectiveStop
	// DirectiveEscalate 上报给父 Actor 处理
	DirectiveEscalate
)

// String 返回指令名称
func (d Directive) String() string {
	switch d {
	case DirectiveResume:
		return "Resume"
	case DirectiveRestart:
		return "Restart"
	case DirectiveStop:
		return "Stop"
	case DirectiveEscalate:
		return "Escalate"
	default:
		return "Unknown"
	}
}

// SupervisorStrategy 监督策略接口
type SupervisorStrategy interface {
	// HandleFailure 处理 Actor 失败，返回应该采取的指令
	HandleFailure(child *PID, msg Message, err any) Directive
}

// Decider 决策函数类型
type Decider func(err any) Directive

// OneForOneStrategy 一对一策略
// 只处理失败的 Actor，不影响其兄弟 Actor
type OneForOneStrategy struct {
	MaxRestarts    int           // 时间窗口内最大重启次数
	WithinDuration time.Duration // 时间窗口
	Decider        Decider       // 决策函数

	mu            sync.Mutex
	restartWindow []time.Time
}

// NewOneForOneStrategy 创建一对一策略
func NewOneForOneStrategy(maxRestarts int, within time.Duration, decider Decider) *OneForOneStrategy {
	if decider == nil {
		decider = DefaultDecider
	}
	return &OneForOneStrategy{
		MaxRestarts:    maxRestarts,
		WithinDuration: within,
		Decider:        decider,
	}
}

// HandleFailure 实现 SupervisorStrategy
// 超过重启次数限制后降级为 Stop
func (s *OneForOneStrategy) HandleFailure(_ *PID, _ Message, err any) Directive {
	directive := s.Decider(err)
	if directive != DirectiveRestart {
		return directive
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.WithinDuration)

	valid := s.restartWindow[:0]
	for _, t := range s.restartWindow {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	s.restartWindow = valid

	if len(s.restartWindow) >= s.MaxRestarts {
		return DirectiveStop
	}

	s.restartWindow = append(s.restartWindow, now)
	return directive
}

// ============== 默认策略和决策器 ==============

// DefaultDecider 对所有错误采取重启
func DefaultDecider(_ any) Directive {
	return DirectiveRestart
}

// StoppingDecider 对所有错误采取停止
func StoppingDecider(_ any) Directive {
	return DirectiveStop
}

// EscalatingDecider 对所有错误采取上报
func EscalatingDecider(_ any) Directive {
	return DirectiveEscalate
}

// ResumingDecider 对所有错误采取恢复（忽略错误继续运行）
func ResumingDecider(_ any) Directive {
	return DirectiveResume
}

// DefaultSupervisorStrategy 默认监督策略
// 1 分钟内允许 3 次重启
func DefaultSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(3, time.Minute, DefaultDecider)
}

// EscalatingSupervisorStrategy 任何失败都上报父 Actor
func EscalatingSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(0, time.Second, EscalatingDecider)
}

// ResumingSupervisorStrategy 任何失败都忽略
func ResumingSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(0, time.Second, ResumingDecider)
}

// StoppingSupervisorStrategy 任何失败都停止 Actor
func StoppingSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(0, time.Second, StoppingDecider)
}
