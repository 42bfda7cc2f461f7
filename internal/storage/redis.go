package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/types"
)

// ErrNotFound 键不存在时返回，包装底层的 redis.Nil
var ErrNotFound = redis.Nil

// Redis 键值存储，负责已处理文件名的去重记录和提取结果缓存
type Redis struct {
	client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedis 创建Redis客户端
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})

	// 注册OpenTelemetry追踪钩子
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	return &Redis{client: client, cfg: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// filenameRecordExpire 已处理文件名记录的过期时间
func (r *Redis) filenameRecordExpire() time.Duration {
	days := r.cfg.FilenameRecordExpireDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckFilenameProcessed 检查规范化文件名是否已处理过。
// Redis只是MySQL唯一索引之前的快速通道，误判为未处理时由数据库兜底。
func (r *Redis) CheckFilenameProcessed(ctx context.Context, normalizedFilename string) (bool, error) {
	exists, err := r.client.SIsMember(ctx, constants.ProcessedFilenameSetKey, normalizedFilename).Result()
	if err != nil {
		return false, fmt.Errorf("查询已处理文件名Set失败: %w", err)
	}
	return exists, nil
}

// MarkFilenameProcessed 将规范化文件名记入已处理Set并刷新过期时间
func (r *Redis) MarkFilenameProcessed(ctx context.Context, normalizedFilename string) error {
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, constants.ProcessedFilenameSetKey, normalizedFilename)
	pipe.Expire(ctx, constants.ProcessedFilenameSetKey, r.filenameRecordExpire())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("记录已处理文件名失败: %w", err)
	}
	return nil
}

// RemoveFilenameProcessed 从已处理Set中移除文件名并清掉对应的提取结果缓存，
// 候选人被删除后同名文件才能重新入库
func (r *Redis) RemoveFilenameProcessed(ctx context.Context, normalizedFilename string) error {
	pipe := r.client.Pipeline()
	pipe.SRem(ctx, constants.ProcessedFilenameSetKey, normalizedFilename)
	pipe.Del(ctx, constants.CandidateCachePrefix+normalizedFilename)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("移除已处理文件名失败: %w", err)
	}
	return nil
}

// CacheExtraction 缓存一份提取结果，键为规范化文件名
func (r *Redis) CacheExtraction(ctx context.Context, normalizedFilename string, ext *types.ResumeExtraction) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("序列化提取结果失败: %w", err)
	}
	key := constants.CandidateCachePrefix + normalizedFilename
	if err := r.client.Set(ctx, key, data, constants.CandidateCacheDuration).Err(); err != nil {
		return fmt.Errorf("写入提取结果缓存失败: %w", err)
	}
	return nil
}

// GetCachedExtraction 读取缓存的提取结果，缓存未命中时返回 (nil, nil)
func (r *Redis) GetCachedExtraction(ctx context.Context, normalizedFilename string) (*types.ResumeExtraction, error) {
	key := constants.CandidateCachePrefix + normalizedFilename
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取提取结果缓存失败: %w", err)
	}

	var ext types.ResumeExtraction
	if err := json.Unmarshal(data, &ext); err != nil {
		// 缓存内容损坏时按未命中处理，由数据库兜底
		return nil, nil
	}
	ext.Normalize()
	return &ext, nil
}
