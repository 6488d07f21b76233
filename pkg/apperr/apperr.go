package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 稳定的错误类别，直接暴露给调用方
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindPermissionDenied Kind = "PermissionDenied"
	KindNotFound         Kind = "NotFound"
	KindConflict         Kind = "Conflict"
	KindExpired          Kind = "Expired"
	KindAlreadyProcessed Kind = "AlreadyProcessed"
	KindEmailMismatch    Kind = "EmailMismatch"
	KindUnauthenticated  Kind = "Unauthenticated"
	KindInternal         Kind = "Internal"
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string
	// Action 被拒绝的操作名（仅 PermissionDenied）
	Action string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func PermissionDenied(action string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Message: fmt.Sprintf("permission denied: %s", action),
		Action:  action,
	}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", entity)}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Expired(msg string) *Error {
	return &Error{Kind: KindExpired, Message: msg}
}

func AlreadyProcessed(msg string) *Error {
	return &Error{Kind: KindAlreadyProcessed, Message: msg}
}

func EmailMismatch() *Error {
	return &Error{Kind: KindEmailMismatch, Message: "invitation was sent to a different email address"}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf 返回错误类别，非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断 err 是否属于某一类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied, KindEmailMismatch:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindAlreadyProcessed:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
