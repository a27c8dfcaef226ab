package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 이용권余额是共享可变状态：同一用户开两个标签页同时点生成，
// 两个请求都读到余额 5、各自扣 1、最后余额 4 —— 丢了一次扣减。
// 余额变动前按用户维度加锁，同一用户的扣减/充值串行执行，
// 不同用户互不影响。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本校验 value 后删除，防止误删别人的锁

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识，释放时校验
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// 持锁超时后锁可能已被别人拿走，只有 value 仍是自己的才删除
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewCreditLock 创建이용권余额锁（按用户名维度）
// value 使用请求侧的唯一标识（订单号 / 请求ID），便于追踪持锁者
func NewCreditLock(client *redis.Client, username string, requestID string) *DistributedLock {
	key := fmt.Sprintf("credit:lock:user:%s", username)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}
