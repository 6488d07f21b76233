package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var ErrEventNotFound = errors.New("outbox event not found")

// Event 表示一个待发布的事件
type Event struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   *string         `json:"aggregateId,omitempty"`
	RoutingKey    string          `json:"routingKey"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retryCount"`
	NextRetryAt   *time.Time      `json:"nextRetryAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Store outbox 的持久化，postgres 和 redis 各有一份实现
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID string) error
	MarkAsFailed(ctx context.Context, eventID string, maxRetries int) error
	GetEventByID(ctx context.Context, eventID string) (*Event, error)
	ReplayEvent(ctx context.Context, eventID string) error
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// Publisher 由 mq.Publisher 实现
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// NewEvent 构造一个 pending 事件，payload 立即序列化
func NewEvent(aggregateType, aggregateID, routingKey string, payload any, now time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	e := &Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		RoutingKey:    routingKey,
		Payload:       body,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if aggregateID != "" {
		e.AggregateID = &aggregateID
	}
	return e, nil
}

// NextAttempt 失败后的状态：超过 maxRetries 变为 failed，否则线性退避 5s, 10s, 15s...
func NextAttempt(retryCount, maxRetries int, now time.Time) (status string, nextRetryAt *time.Time) {
	if retryCount >= maxRetries {
		return StatusFailed, nil
	}
	next := now.Add(time.Duration(retryCount) * 5 * time.Second)
	return StatusPending, &next
}
