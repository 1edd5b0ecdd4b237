package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// publishGateKey 发布闸门的有序集合键，整个集群共享同一个窗口
const publishGateKey = "workflow:publish_gate"

// allowScript 淘汰、计数、条件占用在 Redis 端一步完成，
// 并发的 Allow 不会在 limit-1 处同时通过
// 返回 {allowed, retry_after_ms}
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if #oldest == 0 then
    return {0, 0}
  end
  return {0, math.floor(tonumber(oldest[2]) + window - now)}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window * 2)
return {1, 0}
`)

// PublishGate Redis 滑动窗口发布闸门，实现 workflow.PublishGate
// 成员是发布时间戳，score 为毫秒时间，窗口外成员惰性淘汰
type PublishGate struct {
	client *Client
	limit  int
	window time.Duration
}

// NewPublishGate 创建发布闸门
func NewPublishGate(client *Client, limit int, window time.Duration) *PublishGate {
	return &PublishGate{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow 尝试占用一个发布配额；拒绝时返回重试等待时长
// 增量与检查由 Lua 脚本原子完成，窗口不会超额放行
func (g *PublishGate) Allow(ctx context.Context) (bool, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "publishgate.Allow")
	span.SetAttributes(
		attribute.Int("gate.limit", g.limit),
		attribute.Int64("gate.window_ms", g.window.Milliseconds()),
	)
	defer span.End()

	res, err := allowScript.Run(ctx, g.client.rdb,
		[]string{publishGateKey},
		time.Now().UnixMilli(),
		g.window.Milliseconds(),
		g.limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return false, 0, err
	}
	if len(res) != 2 {
		err := fmt.Errorf("unexpected gate script reply: %v", res)
		span.RecordError(err)
		return false, 0, err
	}

	allowed := res[0] == 1
	retry := time.Duration(res[1]) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	span.SetAttributes(attribute.Bool("gate.allowed", allowed))
	return allowed, retry, nil
}

// Refund 退还一个已占用的配额（转换提交失败时的补偿）
// 窗口内的配额彼此等价，移除最新成员即可
func (g *PublishGate) Refund(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "publishgate.Refund")
	defer span.End()

	if err := g.client.rdb.ZRemRangeByRank(ctx, publishGateKey, -1, -1).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Status 只读预检当前配额状态，不占用配额
func (g *PublishGate) Status(ctx context.Context) (bool, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "publishgate.Status")
	defer span.End()

	now := time.Now()
	count, err := g.prune(ctx, now)
	if err != nil {
		span.RecordError(err)
		return false, 0, err
	}

	if count >= int64(g.limit) {
		retry, err := g.retryAfter(ctx, now)
		if err != nil {
			span.RecordError(err)
			return false, 0, err
		}
		return false, retry, nil
	}
	return true, 0, nil
}

// Reset 清空窗口
func (g *PublishGate) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "publishgate.Reset")
	defer span.End()

	if err := g.client.rdb.Del(ctx, publishGateKey).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// prune 淘汰窗口外成员并返回窗口内计数
func (g *PublishGate) prune(ctx context.Context, now time.Time) (int64, error) {
	windowStart := now.Add(-g.window).UnixMilli()

	pipe := g.client.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, publishGateKey, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, publishGateKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return countCmd.Val(), nil
}

// retryAfter 根据窗口内最早的成员计算重试等待时长
func (g *PublishGate) retryAfter(ctx context.Context, now time.Time) (time.Duration, error) {
	oldest, err := g.client.rdb.ZRangeWithScores(ctx, publishGateKey, 0, 0).Result()
	if err != nil {
		return 0, err
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	oldestAt := time.UnixMilli(int64(oldest[0].Score))
	retry := oldestAt.Add(g.window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return retry, nil
}
