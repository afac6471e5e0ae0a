package schedule

import (
	"context"
	"fmt"
	"time"
)

type Task interface {
	Run(ctx context.Context) error
	Name() string
}

// RunEvery 以固定间隔驱动任务，先立即执行一次。
// 任务返回 error 视为致命错误，终止循环并上抛；可恢复的失败应由任务内部记录后返回 nil
func RunEvery(ctx context.Context, interval time.Duration, task Task) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task.Run(ctx); err != nil {
			return fmt.Errorf("task %s: %w", task.Name(), err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
