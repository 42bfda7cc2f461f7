package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenBucketWaitWithinCapacity 容量内的请求不应阻塞
func TestTokenBucketWaitWithinCapacity(t *testing.T) {
	bucket := NewTokenBucket(600, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, bucket.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond, "容量内的取令牌不应等待")
}

// TestTokenBucketWaitCancelled 上下文取消时立刻返回
func TestTokenBucketWaitCancelled(t *testing.T) {
	// 速率极低且桶已空，Wait只能等令牌或上下文
	bucket := NewTokenBucket(1, 1)
	require.NoError(t, bucket.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bucket.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRetryWithBackoffRetryable 可重试错误按次数重试后成功
func TestRetryWithBackoffRetryable(t *testing.T) {
	bucket := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := bucket.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("429 too many requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestRetryWithBackoffNonRetryable 不可重试错误立即返回
func TestRetryWithBackoffNonRetryable(t *testing.T) {
	bucket := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	wantErr := errors.New("invalid api key")
	err := bucket.RetryWithBackoff(context.Background(), func() error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

// TestIsRetryableError 错误消息分类
func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("dial tcp: i/o timeout")))
	assert.True(t, isRetryableError(errors.New("context deadline exceeded")))
	assert.True(t, isRetryableError(errors.New("HTTP 429 rate limit exceeded")))
	assert.True(t, isRetryableError(errors.New("unexpected EOF")))
	assert.False(t, isRetryableError(errors.New("invalid request body")))
	assert.False(t, isRetryableError(nil))
}
