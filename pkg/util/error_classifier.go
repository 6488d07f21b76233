package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/textproto"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

// ErrPermanent 包装后的错误不会被重试
var ErrPermanent = errors.New("permanent failure")

// Failure 一次处理失败的分类结果
type Failure struct {
	Kind      string
	Retryable bool
}

type failureRule struct {
	Failure
	match func(error) bool
}

// 按顺序匹配，第一个命中的规则生效
var failureRules = []failureRule{
	{Failure{"permanent", false}, func(err error) bool { return errors.Is(err, ErrPermanent) }},
	{Failure{"json_decode_error", false}, func(err error) bool {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		return errors.As(err, &syn) || errors.As(err, &typ)
	}},
	{Failure{"timeout", true}, func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }},
	{Failure{"context_canceled", false}, func(err error) bool { return errors.Is(err, context.Canceled) }},
	// SMTP 4xx 是临时失败
	{Failure{"smtp_transient", true}, func(err error) bool {
		var pe *textproto.Error
		return errors.As(err, &pe) && pe.Code >= 400 && pe.Code < 500
	}},
	{Failure{"smtp_permanent", false}, func(err error) bool {
		var pe *textproto.Error
		return errors.As(err, &pe)
	}},
	{Failure{"amqp_recoverable", true}, func(err error) bool {
		var ae *amqp091.Error
		return errors.As(err, &ae) && ae.Recover
	}},
	{Failure{"network_timeout", true}, func(err error) bool {
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	}},
	{Failure{"network_error", true}, func(err error) bool {
		var ne net.Error
		return errors.As(err, &ne)
	}},
	{Failure{"connection_error", true}, func(err error) bool {
		msg := err.Error()
		return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
	}},
}

// Classify 未识别的错误按不可重试处理
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}
	for _, r := range failureRules {
		if r.match(err) {
			return r.Failure
		}
	}
	return Failure{Kind: "unknown_error"}
}

// ShouldRetry attempt 从 1 开始计数，attempt == limit 时仍会重试
func (f Failure) ShouldRetry(attempt, limit int64) bool {
	return f.Retryable && attempt <= limit
}
