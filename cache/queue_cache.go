package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"BeatFlow/db"
	"BeatFlow/model"

	"github.com/go-redis/redis/v8"
)

// 播放队列缓存：把用户播放引擎的播放列表持久化到 Redis，
// 重连后可以恢复队列。使用有序集合，分数为队列位置。

const queueTTL = 24 * time.Hour

// QueueItem 表示播放队列中的一个项目
type QueueItem struct {
	model.Track
	Position int `json:"position"` // 在队列中的位置
}

// GetQueueKey 根据用户ID生成播放队列的Redis键
func GetQueueKey(userID string) string {
	return fmt.Sprintf("queue:%s", userID)
}

// SaveQueue 整体覆盖用户的播放队列
func SaveQueue(ctx context.Context, userID string, tracks []model.Track) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	queueKey := GetQueueKey(userID)

	// 清空旧队列后按顺序写入
	if err := db.RedisClient.Del(ctx, queueKey).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if len(tracks) == 0 {
		return nil
	}

	members := make([]*redis.Z, 0, len(tracks))
	for i, track := range tracks {
		item := QueueItem{Track: track, Position: i}
		itemJSON, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal queue item: %w", err)
		}
		members = append(members, &redis.Z{
			Score:  float64(i),
			Member: itemJSON,
		})
	}

	if err := db.RedisClient.ZAdd(ctx, queueKey, members...).Err(); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}

	// 设置播放队列的过期时间
	if err := db.RedisClient.Expire(ctx, queueKey, queueTTL).Err(); err != nil {
		return fmt.Errorf("failed to set queue expiration: %w", err)
	}

	return nil
}

// GetQueue 获取用户的整个播放队列（按位置升序）
func GetQueue(ctx context.Context, userID string) ([]model.Track, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	queueKey := GetQueueKey(userID)

	result, err := db.RedisClient.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return []model.Track{}, nil
		}
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	tracks := make([]model.Track, 0, len(result))
	for _, itemJSON := range result {
		var item QueueItem
		if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		tracks = append(tracks, item.Track)
	}

	return tracks, nil
}

// ClearQueue 清空用户的播放队列
func ClearQueue(ctx context.Context, userID string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := db.RedisClient.Del(ctx, GetQueueKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
