package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// TokenBucket 令牌桶限流器，按QPM控制对LLM服务的调用频率
type TokenBucket struct {
	rate           float64 // 每秒生成的令牌数
	capacity       float64
	tokens         float64
	lastRefillTime time.Time
	mutex          sync.Mutex
	retryWaitTime  time.Duration
	maxRetries     int
}

// NewTokenBucket 创建令牌桶。capacity不大于0时取QPM的一半，允许突发流量。
func NewTokenBucket(qpm, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}
	return &TokenBucket{
		rate:           float64(qpm) / 60.0,
		capacity:       float64(capacity),
		tokens:         float64(capacity),
		lastRefillTime: time.Now(),
		retryWaitTime:  time.Second,
		maxRetries:     3,
	}
}

// WithRetryPolicy 设置重试策略
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	tb.retryWaitTime = waitTime
	tb.maxRetries = maxRetries
	return tb
}

// refill 按经过的时间补充令牌，调用方需持有锁
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Wait 阻塞直到拿到一个令牌或上下文取消
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mutex.Lock()
		tb.refill()
		if tb.tokens >= 1.0 {
			tb.tokens -= 1.0
			tb.mutex.Unlock()
			return nil
		}
		waitTime := time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// RetryWithBackoff 限流执行fn，对可重试错误做指数退避
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for retry := 0; retry <= tb.maxRetries; retry++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) || retry >= tb.maxRetries {
			return err
		}

		backoff := tb.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// isRetryableError 按错误消息判断是否值得重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, substr := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"EOF",
		"connection refused",
		"429",
		"rate limit",
		"no such host",
	} {
		if strings.Contains(errStr, substr) {
			return true
		}
	}
	return false
}

// RateLimitedChatModel 在StructuredChatModel外层加限流和重试
type RateLimitedChatModel struct {
	inner       StructuredChatModel
	rateLimiter *TokenBucket
}

// 确保RateLimitedChatModel仍满足StructuredChatModel接口
var _ StructuredChatModel = (*RateLimitedChatModel)(nil)

// NewRateLimitedChatModel 创建限流代理
func NewRateLimitedChatModel(inner StructuredChatModel, qpm int) *RateLimitedChatModel {
	return &RateLimitedChatModel{
		inner:       inner,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// Generate 限流代理Generate
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.inner.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

// GenerateStructured 限流代理GenerateStructured
func (rl *RateLimitedChatModel) GenerateStructured(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.inner.GenerateStructured(ctx, messages)
		return genErr
	})
	return response, err
}

// Stream 限流代理Stream
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.inner.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 代理WithTools，返回的新模型沿用同一个限流器
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	if structured, ok := newModel.(StructuredChatModel); ok {
		return &RateLimitedChatModel{inner: structured, rateLimiter: rl.rateLimiter}, nil
	}
	return newModel, nil
}
