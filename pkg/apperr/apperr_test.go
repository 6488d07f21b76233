package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "not found", err: NotFound("project"), want: KindNotFound},
		{name: "wrapped conflict", err: fmt.Errorf("create: %w", Conflict("dup")), want: KindConflict},
		{name: "permission", err: PermissionDenied("task:delete"), want: KindPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPermissionDeniedCarriesAction(t *testing.T) {
	err := PermissionDenied("project:delete")
	if err.Action != "project:delete" {
		t.Fatalf("action = %q", err.Action)
	}
	if !Is(err, KindPermissionDenied) {
		t.Fatal("expected PermissionDenied kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindUnauthenticated:  http.StatusUnauthorized,
		KindPermissionDenied: http.StatusForbidden,
		KindEmailMismatch:    http.StatusForbidden,
		KindNotFound:         http.StatusNotFound,
		KindConflict:         http.StatusConflict,
		KindAlreadyProcessed: http.StatusConflict,
		KindExpired:          http.StatusGone,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Internal(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Internal to wrap cause")
	}
}
