package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"chatlink/pkg/logger"
	"chatlink/pkg/redis"
)

const (
	// refcountKeyPrefix 用户连接计数键前缀
	refcountKeyPrefix = "presence:refcount:"
	// onlineUsersKey 在线用户ZSET，score为最近活跃时间的毫秒时间戳
	onlineUsersKey = "presence:online_users"
)

// DefaultStalenessWindow 超过该时长未刷新视为离线
const DefaultStalenessWindow = 120 * time.Second

// Store 在线状态存储所需的Redis操作子集
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	ZAdd(ctx context.Context, key string, members ...*goredis.Z) (int64, error)
	ZRem(ctx context.Context, key string, members ...interface{}) error
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
}

// Tracker 跨实例共享的用户在线状态
// 同一用户多个连接用计数键去重，上下线各只产生一次状态变化
type Tracker struct {
	store           Store
	logger          logger.Logger
	stalenessWindow time.Duration
	now             func() time.Time
}

// NewTracker 创建在线状态跟踪器
func NewTracker(store Store, log logger.Logger, stalenessWindow time.Duration) *Tracker {
	if stalenessWindow <= 0 {
		stalenessWindow = DefaultStalenessWindow
	}
	return &Tracker{
		store:           store,
		logger:          log,
		stalenessWindow: stalenessWindow,
		now:             time.Now,
	}
}

func refcountKey(userID string) string {
	return refcountKeyPrefix + userID
}

// SetUserOnline 用户新连接上线，返回是否是0到1的上线边沿
// ZSET新增成员但计数大于1说明计数键残留了陈旧值，此时把计数重置为1
// 并按上线边沿处理，保证计数与ZSET成员一致
func (t *Tracker) SetUserOnline(ctx context.Context, userID string) (bool, error) {
	count, err := t.store.Incr(ctx, refcountKey(userID))
	if err != nil {
		return false, fmt.Errorf("incr refcount for user %s: %w", userID, err)
	}

	added, err := t.store.ZAdd(ctx, onlineUsersKey, &goredis.Z{
		Score:  float64(t.now().UnixMilli()),
		Member: userID,
	})
	if err != nil {
		return false, fmt.Errorf("add user %s to online set: %w", userID, err)
	}

	if added > 0 && count > 1 {
		t.logger.Warn(ctx, "Stale presence refcount detected, resetting",
			logger.F("user_id", userID),
			logger.F("refcount", count))
		if err := t.store.Set(ctx, refcountKey(userID), 1, 0); err != nil {
			return false, fmt.Errorf("reset stale refcount for user %s: %w", userID, err)
		}
		return true, nil
	}

	return count == 1, nil
}

// SetUserOffline 用户一条连接下线，返回是否是1到0的下线边沿
// 计数降到0或以下时删除计数键并移出在线ZSET
func (t *Tracker) SetUserOffline(ctx context.Context, userID string) (bool, error) {
	count, err := t.store.Decr(ctx, refcountKey(userID))
	if err != nil {
		return false, fmt.Errorf("decr refcount for user %s: %w", userID, err)
	}

	if count > 0 {
		return false, nil
	}

	if err := t.store.Del(ctx, refcountKey(userID)); err != nil {
		return false, fmt.Errorf("del refcount for user %s: %w", userID, err)
	}
	if err := t.store.ZRem(ctx, onlineUsersKey, userID); err != nil {
		return false, fmt.Errorf("remove user %s from online set: %w", userID, err)
	}
	return true, nil
}

// IsUserOnline 判断用户是否在线，最近活跃时间超出时效窗口视为离线
func (t *Tracker) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	score, err := t.store.ZScore(ctx, onlineUsersKey, userID)
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("zscore user %s: %w", userID, err)
	}

	// 恰好落在窗口边界的记录视为离线，与清理的包含边界一致
	cutoff := t.now().Add(-t.stalenessWindow).UnixMilli()
	return score > float64(cutoff), nil
}

// RefreshUsersStatus 批量刷新用户的最近活跃时间，心跳循环调用
func (t *Tracker) RefreshUsersStatus(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	nowMillis := float64(t.now().UnixMilli())
	members := make([]*goredis.Z, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, &goredis.Z{Score: nowMillis, Member: userID})
	}

	if _, err := t.store.ZAdd(ctx, onlineUsersKey, members...); err != nil {
		return fmt.Errorf("refresh online users: %w", err)
	}
	return nil
}

// GetOnlineUserIDs 返回当前在线用户，先清理过期成员再读取
func (t *Tracker) GetOnlineUserIDs(ctx context.Context) ([]string, error) {
	cutoff := t.now().Add(-t.stalenessWindow).UnixMilli()
	maxScore := strconv.FormatInt(cutoff, 10)
	if err := t.store.ZRemRangeByScore(ctx, onlineUsersKey, "-inf", maxScore); err != nil {
		return nil, fmt.Errorf("purge stale online users: %w", err)
	}

	userIDs, err := t.store.ZRange(ctx, onlineUsersKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	return userIDs, nil
}
