package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayResult 批量重放的结果，Failed 是仍然失败的事件 ID
type ReplayResult struct {
	Replayed int      `json:"replayed"`
	Failed   []string `json:"failed"`
}

// ReplayService 运维接口：查看并立即重放 failed 事件
type ReplayService struct {
	sender
	logger *zap.Logger
}

func NewReplayService(store Store, publisher Publisher, logger *zap.Logger, maxRetries int) *ReplayService {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &ReplayService{
		sender: sender{store: store, publisher: publisher, maxRetries: maxRetries},
		logger: logger,
	}
}

// ReplayEvent 不存在时返回 ErrEventNotFound
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID string) error {
	e, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	return s.send(ctx, e)
}

func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (ReplayResult, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("list failed events: %w", err)
	}
	res := ReplayResult{Failed: []string{}}
	for _, e := range events {
		if err := s.send(ctx, e); err != nil {
			s.logger.Warn("Replay failed", zap.String("event_id", e.ID), zap.Error(err))
			res.Failed = append(res.Failed, e.ID)
			continue
		}
		res.Replayed++
	}
	return res, nil
}

func (s *ReplayService) FailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	return s.store.GetFailedEvents(ctx, limit)
}
