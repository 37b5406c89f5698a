package cache

import (
	"context"
	"fmt"
	"time"

	"BeatFlow/db"

	"github.com/go-redis/redis/v8"
)

// 工作区在线状态：记录每个项目当前打开的工作区会话，基于心跳过期。
// 用于仪表盘展示以及防止同一项目被并发编辑时互相覆盖。

const (
	presenceWindow = 60 * time.Second
	presenceTTL    = 10 * time.Minute
)

// WorkspaceCache 工作区状态缓存
type WorkspaceCache struct{}

// NewWorkspaceCache 创建工作区缓存
func NewWorkspaceCache() *WorkspaceCache {
	return &WorkspaceCache{}
}

func (c *WorkspaceCache) presenceKey(projectID string) string {
	return fmt.Sprintf("workspace:presence:%s", projectID)
}

// UpdatePresence 更新用户在工作区的心跳时间
func (c *WorkspaceCache) UpdatePresence(ctx context.Context, projectID, userID string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	key := c.presenceKey(projectID)
	err := db.RedisClient.ZAdd(ctx, key, &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update workspace presence: %w", err)
	}

	return db.RedisClient.Expire(ctx, key, presenceTTL).Err()
}

// RemovePresence 移除用户的工作区在线状态
func (c *WorkspaceCache) RemovePresence(ctx context.Context, projectID, userID string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	return db.RedisClient.ZRem(ctx, c.presenceKey(projectID), userID).Err()
}

// ActiveCount 获取工作区活跃会话数（最近一个心跳窗口内）
func (c *WorkspaceCache) ActiveCount(ctx context.Context, projectID string) (int64, error) {
	if db.RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	cutoff := time.Now().Add(-presenceWindow).Unix()
	return db.RedisClient.ZCount(ctx, c.presenceKey(projectID),
		fmt.Sprintf("%d", cutoff), "+inf").Result()
}
