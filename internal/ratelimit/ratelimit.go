// Package ratelimit 实现聊天入口的单用户滑动配额闸门。
// 存储后端通过 Store 接口注入：单进程部署使用进程内 map，
// 多进程部署可换用 Redis 计数器，准入契约保持一致。
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hexona-gpts-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// Store 定义限流计数的存储后端。
// Admit 对单个 key 执行一次读改写：窗口内未超限返回 true 并计数，
// 超限返回 false；窗口已过期则无条件重置为 1。
type Store interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Limiter 是聊天管线前置的准入闸门。
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// NewLimiter 创建一个限流器。
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Admit 判断该用户本次请求是否放行。
// 存储后端出错时放行并记录日志：限流是保护措施，不应成为单点故障。
func (l *Limiter) Admit(ctx context.Context, userID uint) bool {
	ok, err := l.store.Admit(ctx, fmt.Sprintf("chat_rate:%d", userID), l.limit, l.window)
	if err != nil {
		log.Errorf("限流存储检查失败，本次放行: %v", err)
		return true
	}
	return ok
}

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore 是进程内的限流存储。每个用户的条目彼此独立，
// 锁只保护 map 结构本身；进程重启即清零，这是单进程部署接受的限制。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore 创建进程内限流存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Admit 实现 Store 接口。
func (s *MemoryStore) Admit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		// 首次请求或窗口已过期：无条件重置
		s.entries[key] = &memoryEntry{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	if entry.count >= limit {
		return false, nil
	}
	entry.count++
	return true, nil
}

// RedisStore 是基于 Redis 计数器的限流存储，供多进程部署使用。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 限流存储。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Admit 实现 Store 接口。INCR 原子自增，首次计数时设置窗口过期。
func (s *RedisStore) Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to incr rate key: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate window: %w", err)
		}
	}
	return count <= int64(limit), nil
}
