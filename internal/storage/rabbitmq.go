package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
)

// MessageQueue 消息队列接口
type MessageQueue interface {
	// PublishMessage 发布消息
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error

	// PublishJSON 发布JSON格式消息
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error

	// EnsureExchange 确保交换机存在
	EnsureExchange(exchangeName, exchangeType string, durable bool) error

	// Close 关闭连接
	Close() error
}

// 确保RabbitMQ实现了MessageQueue接口
var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ 提供候选人事件的消息发布
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	exchangeMu  sync.Mutex
	exchangeMap map[string]bool // 记录已声明的exchange
	cfg         *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端并声明候选人事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:        conn,
		exchangeMap: make(map[string]bool),
		cfg:         cfg,
	}

	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, chErr := conn.Channel()
			if chErr != nil {
				logger.Error().Err(chErr).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	// 预先声明候选人事件交换机，发布路径上无需再判断
	if cfg.CandidateEventsExchange != "" {
		if err := mq.EnsureExchange(cfg.CandidateEventsExchange, "topic", true); err != nil {
			conn.Close()
			return nil, err
		}
	}

	logger.Info().Str("exchange", cfg.CandidateEventsExchange).Msg("RabbitMQ客户端初始化完成")
	return mq, nil
}

// getChannel 获取可用通道
func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	channel := ch.(*amqp.Channel)
	if channel.IsClosed() {
		newCh, err := r.conn.Channel()
		if err != nil {
			logger.Error().Err(err).Msg("重建RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	return channel
}

// putChannel 归还通道到池
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

// EnsureExchange 确保交换机存在，重复声明只走缓存
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	r.exchangeMu.Lock()
	defer r.exchangeMu.Unlock()

	if r.exchangeMap[exchangeName] {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		durable,
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("声明交换机 %s 失败: %w", exchangeName, err)
	}

	r.exchangeMap[exchangeName] = true
	return nil
}

// PublishMessage 发布消息
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	err := ch.PublishWithContext(ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: deliveryMode,
			Body:         message,
		},
	)
	if err != nil {
		return fmt.Errorf("发布消息到 %s/%s 失败: %w", exchangeName, routingKey, err)
	}
	return nil
}

// PublishJSON 发布JSON格式消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, body, persistent)
}
