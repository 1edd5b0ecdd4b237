// Package workflow 提供故事发布工作流状态机
package workflow

import (
	"context"
	"sync"
	"time"
)

// PublishGate 发布限流闸门
// 进程/集群级共享状态，通过注入传入，便于测试确定性重置
type PublishGate interface {
	// Allow 尝试占用一个发布配额；拒绝时返回重试等待时长
	Allow(ctx context.Context) (bool, time.Duration, error)
	// Refund 退还一个已占用的配额；窗口内的配额彼此等价
	Refund(ctx context.Context) error
	// Status 只读预检当前配额状态，不占用配额
	Status(ctx context.Context) (bool, time.Duration, error)
	// Reset 清空窗口（测试与运维用）
	Reset(ctx context.Context) error
}

// MemoryGate 内存滑动窗口闸门
// 单进程部署或测试时替代 Redis 实现
type MemoryGate struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	now func() time.Time
}

// NewMemoryGate 创建内存闸门
func NewMemoryGate(limit int, window time.Duration) *MemoryGate {
	return &MemoryGate{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock 注入时钟（测试用）
func (g *MemoryGate) WithClock(now func() time.Time) *MemoryGate {
	g.now = now
	return g
}

// Allow 尝试占用一个发布配额
func (g *MemoryGate) Allow(_ context.Context) (bool, time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.stamps) >= g.limit {
		return false, g.retryAfter(now), nil
	}

	g.stamps = append(g.stamps, now)
	return true, 0, nil
}

// Refund 退还最近占用的一个配额
func (g *MemoryGate) Refund(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.stamps) > 0 {
		g.stamps = g.stamps[:len(g.stamps)-1]
	}
	return nil
}

// Status 只读预检
func (g *MemoryGate) Status(_ context.Context) (bool, time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.stamps) >= g.limit {
		return false, g.retryAfter(now), nil
	}
	return true, 0, nil
}

// Reset 清空窗口
func (g *MemoryGate) Reset(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stamps = nil
	return nil
}

// evict 淘汰窗口外的时间戳，须持锁调用
func (g *MemoryGate) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	kept := g.stamps[:0]
	for _, s := range g.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	g.stamps = kept
}

// retryAfter 根据窗口内最早的时间戳计算重试等待时长，须持锁调用
func (g *MemoryGate) retryAfter(now time.Time) time.Duration {
	if len(g.stamps) == 0 {
		return 0
	}
	retry := g.stamps[0].Add(g.window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return retry
}
