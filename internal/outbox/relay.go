package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/tracing"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// MessageRelay 轮询outbox表并把候选人事件发布到RabbitMQ。
// FOR UPDATE SKIP LOCKED保证多实例并发轮询时不会重复投递同一条消息。
type MessageRelay struct {
	db              *gorm.DB
	publisher       *storage.RabbitMQ
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// RelayOption 中继服务选项
type RelayOption func(*MessageRelay)

// WithPollingInterval 覆盖默认轮询间隔
func WithPollingInterval(d time.Duration) RelayOption {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 覆盖每次轮询处理的消息数量
func WithBatchSize(n int) RelayOption {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建消息中继服务
func NewMessageRelay(db *gorm.DB, publisher *storage.RabbitMQ, opts ...RelayOption) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             logger.Logger.With().Str("component", "message_relay").Logger(),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 启动后台轮询
func (r *MessageRelay) Start() {
	r.log.Info().Dur("interval", r.pollingInterval).Msg("消息中继服务启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				r.log.Info().Msg("消息中继服务已停止")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("处理待发消息失败")
				}
			}
		}
	}()
}

// Stop 优雅停止轮询
func (r *MessageRelay) Stop() {
	close(r.done)
}

// processPendingMessages 锁定并投递一批PENDING消息
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", "PENDING").
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	// 空轮询不开Span
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	for _, msg := range messages {
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeRabbitMQ,
				attribute.String("messaging.destination", msg.TargetExchange),
				attribute.String("messaging.routing_key", msg.TargetRoutingKey),
			)
			r.log.Warn().Err(err).
				Uint64("message_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount+1).
				Msg("消息发布失败")
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = "FAILED"
			}
		} else {
			msg.Status = "SENT"
			now := time.Now()
			msg.ProcessedAt = &now
			msg.ErrorMessage = ""
		}

		// 更新失败则整批回滚，下次轮询重新拾取
		if err := tx.Save(&msg).Error; err != nil {
			return err
		}
	}

	return tx.Commit().Error
}
