package models

import "time"

// OutboxMessage 事务性发件箱消息。业务写库和事件写入同一事务，
// 由 outbox.MessageRelay 轮询后投递到RabbitMQ。
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:varchar(36);not null;index"` // 业务主体ID，如候选人ID
	EventType        string     `gorm:"type:varchar(255);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int        `gorm:"default:0"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time `gorm:"type:datetime(6);null"`
	ErrorMessage     string     `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
