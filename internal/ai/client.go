package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/pkg/circuitbreaker"
	"projecthub/pkg/metrics"
	"projecthub/pkg/otel"
	"projecthub/pkg/trace"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"

	breakdownPath = "/breakdown"
)

// Client 调用外部 AI 服务生成任务拆解，带熔断器和 fallback
type Client struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

type Options struct {
	BaseURL string
	Enabled bool
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Breaker.FailureThreshold == 0 {
		// 连续失败3次后打开，30秒后半开试探
		opts.Breaker = circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}
	}
	opts.Breaker.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("AI circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		enabled:    opts.Enabled && opts.BaseURL != "",
		httpClient: &http.Client{Timeout: opts.Timeout},
		cb:         circuitbreaker.NewCircuitBreaker(opts.Breaker),
		logger:     logger,
	}
}

type breakdownRequest struct {
	Goal  string   `json:"goal"`
	Roles []string `json:"roles"`
}

// GenerateBreakdown 失败（包括熔断打开）时返回固定的 fallback，不返回错误
func (c *Client) GenerateBreakdown(ctx context.Context, goal string, roles []string) *model.Breakdown {
	if !c.enabled {
		return Fallback(goal)
	}

	var bd *model.Breakdown
	err := c.cb.Execute(func() error {
		var callErr error
		bd, callErr = c.call(ctx, goal, roles)
		return callErr
	})
	if err != nil {
		c.logger.Warn("AI breakdown failed, using fallback",
			zap.Error(err),
			zap.Bool("breaker_open", errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen)),
			zap.String("trace_id", trace.FromContext(ctx)),
		)
		return Fallback(goal)
	}
	bd.Source = SourceAI
	return bd
}

func (c *Client) call(ctx context.Context, goal string, roles []string) (bd *model.Breakdown, err error) {
	ctx, span := otel.Start(ctx, "ai.breakdown")
	defer func() {
		otel.Fail(span, err)
		span.End()
	}()

	start := time.Now()
	b, err := json.Marshal(breakdownRequest{Goal: goal, Roles: roles})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+breakdownPath, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.Header, traceID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAICallLatency(breakdownPath, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := strconv.Itoa(resp.StatusCode)
		if resp.StatusCode >= 500 {
			status = "5xx"
		}
		metrics.RecordAICallLatency(breakdownPath, status, time.Since(start))
		return nil, fmt.Errorf("ai service returned %d", resp.StatusCode)
	}
	metrics.RecordAICallLatency(breakdownPath, "success", time.Since(start))

	var out model.Breakdown
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	if len(out.Milestones) == 0 {
		return nil, errors.New("ai service returned an empty breakdown")
	}
	return &out, nil
}

// State 熔断器当前状态
func (c *Client) State() string {
	return c.cb.GetState().String()
}
