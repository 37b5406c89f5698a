package storage

import (
	"context"
	"fmt"
	"time"

	"BeatFlow/config"

	"github.com/minio/minio-go/v7"
)

// ObjectInfo 对象信息摘要
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	Prefixes     map[string]int64 // 各目录的对象数量
}

// ListBucketObjects 列出存储桶中指定前缀下的对象
func ListBucketObjects(cfg *config.Config, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	if minioClient == nil {
		return nil, nil, fmt.Errorf("MinIO client not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats := &BucketStats{Prefixes: make(map[string]int64)}
	var objects []ObjectInfo

	for object := range minioClient.ListObjects(ctx, cfg.MinioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}

		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if dir := topLevelDir(object.Key); dir != "" {
			stats.Prefixes[dir]++
		}
	}

	return objects, stats, nil
}

// PrintBucketStatus 打印存储桶状态（cmd 工具使用）
func PrintBucketStatus(cfg *config.Config, prefix string) error {
	objects, stats, err := ListBucketObjects(cfg, prefix, true)
	if err != nil {
		return err
	}

	fmt.Printf("Bucket: %s (prefix: %q)\n", cfg.MinioBucket, prefix)
	fmt.Printf("Objects: %d, Total size: %s\n", stats.TotalObjects, formatSize(stats.TotalSize))
	for dir, count := range stats.Prefixes {
		fmt.Printf("  %s/: %d objects\n", dir, count)
	}
	for _, obj := range objects {
		fmt.Printf("  %-60s %10s  %s\n", obj.Key, formatSize(obj.Size), obj.LastModified.Format(time.RFC3339))
	}
	return nil
}

// RemovePrefix 删除指定前缀下的所有对象
func RemovePrefix(cfg *config.Config, prefix string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	if prefix == "" {
		return fmt.Errorf("refusing to delete with empty prefix")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for object := range minioClient.ListObjects(ctx, cfg.MinioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects for deletion: %w", object.Err)
		}
		if err := minioClient.RemoveObject(ctx, cfg.MinioBucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", object.Key, err)
		}
	}
	return nil
}

func topLevelDir(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i]
		}
	}
	return ""
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
