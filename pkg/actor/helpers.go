package actor

import (
	"context"
	"errors"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// 请求-回复辅助函数
// ═══════════════════════════════════════════════════════════════════════════

// TrySend 尝试非阻塞发送到通道
// 如果通道为 nil 或已满，返回 false
func TrySend[T any](ch chan<- T, value T) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// Await 等待回复通道返回结果
// 超时返回 context.DeadlineExceeded
//
// 用法示例:
//
//	replyCh := make(chan []string, 1)
//	pid.Tell(&ListRowsMsg{ReplyChan: replyCh})
//	ids, err := actor.Await(replyCh, time.Second)
func Await[T any](ch <-chan T, timeout time.Duration) (T, error) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		return result, nil
	case <-timer.C:
		return zero, context.DeadlineExceeded
	}
}

// IsContextError 检查错误是否为 context 相关错误
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
