package xredis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 是自己的锁才续期 / 删除
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// MasterLock 同一组里只允许一个节点持有（比如同一个 wal 目录只能有一个 matchd 在写）
type MasterLock struct {
	rdb redis.UniversalClient
	key string
	id  string // 当前节点的唯一ID
	ttl time.Duration
}

func NewMasterLock(rdb redis.UniversalClient, key string, ttl time.Duration) *MasterLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &MasterLock{rdb: rdb, key: key, id: uuid.NewString(), ttl: ttl}
}

func (l *MasterLock) ID() string { return l.id }

// TryAcquire 抢锁；已经是自己的锁则续期
func (l *MasterLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.id, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return l.renew(ctx)
}

func (l *MasterLock) renew(ctx context.Context) (bool, error) {
	n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.id, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release 只删自己的锁
func (l *MasterLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.id).Err()
}

// Keep 每 ttl/3 续期一次，续不上（锁被别人拿走）时调用 onLost 并返回
func (l *MasterLock) Keep(ctx context.Context, onLost func(error)) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.renew(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !ok {
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}
