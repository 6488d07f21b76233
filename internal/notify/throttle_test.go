package notify

import (
	"context"
	"errors"
	"testing"
)

type countingMailer struct{ sends int }

func (m *countingMailer) Send(context.Context, string, string, string) (string, error) {
	m.sends++
	return "<id@test>", nil
}

type stubAcquirer struct{ err error }

func (a stubAcquirer) Acquire(context.Context, string) error { return a.err }

func TestThrottledMailer(t *testing.T) {
	tests := []struct {
		name      string
		acquire   error
		cancelled bool
		wantSend  bool
		wantErr   bool
	}{
		{name: "token granted", wantSend: true},
		{name: "limiter down sends anyway", acquire: errors.New("redis down"), wantSend: true},
		{name: "context cancelled", acquire: context.Canceled, cancelled: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelled {
				cancel()
			}
			inner := &countingMailer{}
			m := ThrottledMailer{Mailer: inner, Limiter: stubAcquirer{err: tt.acquire}, Key: "smtp"}

			_, err := m.Send(ctx, "a@example.com", "s", "<p>x</p>")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := inner.sends == 1; got != tt.wantSend {
				t.Errorf("sent = %v, want %v", got, tt.wantSend)
			}
		})
	}
}
