package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontract "projecthub/contracts/mq"
	"projecthub/pkg/mq"
	"projecthub/pkg/util"
)

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	sent []sentMail
	errs []error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) (string, error) {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return "<id@test>", nil
}

type dlqMessage struct {
	routingKey string
	payload    []byte
	reason     string
}

type fakeDLQ struct {
	messages []dlqMessage
	err      error
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, routingKey string, payload []byte, originalError, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, dlqMessage{routingKey, payload, originalError})
	return nil
}

func newGuard(t *testing.T, dlq DLQPublisher, maxRetries int64) *Guard {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGuard(util.NewDeduper(rdb, "test", time.Hour, zap.NewNop()), util.NewRetryCounter(rdb, "test", time.Hour), dlq, maxRetries, zap.NewNop())
}

func createdPayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontract.InvitationCreatedPayload{
		InvitationID: "inv-1",
		ProjectID:    "p-1",
		ProjectTitle: "Launch",
		InviterName:  "Olga",
		InviteeEmail: "a@x.com",
		ExpiresAt:    time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestInvitationCreatedSendsLinkOnce(t *testing.T) {
	mailer := &fakeMailer{}
	dlq := &fakeDLQ{}
	h := NewInvitationCreatedHandler(mailer, "https://hub.test/invitations/", newGuard(t, dlq, 3), zap.NewNop())
	raw := createdPayload(t)

	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("duplicate Handle: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.to != "a@x.com" || !strings.Contains(mail.html, "https://hub.test/invitations/inv-1") {
		t.Fatalf("mail = %+v", mail)
	}
	if len(dlq.messages) != 0 {
		t.Fatalf("unexpected DLQ messages: %v", dlq.messages)
	}
}

func TestTransientFailureIsRedelivered(t *testing.T) {
	transient := &textproto.Error{Code: 421, Msg: "try again later"}
	mailer := &fakeMailer{errs: []error{transient}}
	dlq := &fakeDLQ{}
	h := NewInvitationCreatedHandler(mailer, "https://hub.test/invitations", newGuard(t, dlq, 3), zap.NewNop())
	raw := createdPayload(t)

	if err := h.Handle(context.Background(), raw); err == nil {
		t.Fatal("transient failure should be returned for requeue")
	}
	// 重投递时去重锁已释放
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(mailer.sent) != 1 || len(dlq.messages) != 0 {
		t.Fatalf("sent=%d dlq=%d", len(mailer.sent), len(dlq.messages))
	}
}

func TestRetriesExhaustedGoToDLQ(t *testing.T) {
	transient := &textproto.Error{Code: 450, Msg: "mailbox busy"}
	mailer := &fakeMailer{errs: []error{transient, transient, transient}}
	dlq := &fakeDLQ{}
	h := NewInvitationCreatedHandler(mailer, "https://hub.test/invitations", newGuard(t, dlq, 2), zap.NewNop())
	raw := createdPayload(t)

	results := make([]error, 3)
	for i := range results {
		results[i] = h.Handle(context.Background(), raw)
	}
	if results[0] == nil || results[1] == nil || results[2] != nil {
		t.Fatalf("results = %v", results)
	}
	if len(dlq.messages) != 1 || dlq.messages[0].routingKey != mq.RoutingInvitationCreated {
		t.Fatalf("dlq = %+v", dlq.messages)
	}
}

func TestPermanentFailureGoesToDLQ(t *testing.T) {
	mailer := &fakeMailer{errs: []error{&textproto.Error{Code: 550, Msg: "no such user"}}}
	dlq := &fakeDLQ{}
	h := NewInvitationCreatedHandler(mailer, "https://hub.test/invitations", newGuard(t, dlq, 3), zap.NewNop())

	if err := h.Handle(context.Background(), createdPayload(t)); err != nil {
		t.Fatalf("permanent failure should be acked, got %v", err)
	}
	if len(dlq.messages) != 1 || !strings.Contains(dlq.messages[0].reason, "no such user") {
		t.Fatalf("dlq = %+v", dlq.messages)
	}
}

func TestMalformedPayloadGoesToDLQ(t *testing.T) {
	dlq := &fakeDLQ{}
	guard := newGuard(t, dlq, 3)
	h := NewInvitationAcceptedHandler(&fakeMailer{}, guard, zap.NewNop())

	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), json.RawMessage(`{"invitation_id":`)); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(dlq.messages) != 2 {
		t.Fatalf("every malformed message should be dead-lettered, got %d", len(dlq.messages))
	}

	dlq.err = errors.New("channel closed")
	if err := h.Handle(context.Background(), json.RawMessage(`nope`)); err == nil {
		t.Fatal("DLQ failure should be returned for requeue")
	}
}

func TestInvitationAcceptedNotifiesInviter(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewInvitationAcceptedHandler(mailer, newGuard(t, &fakeDLQ{}, 3), zap.NewNop())

	raw, _ := json.Marshal(mqcontract.InvitationAcceptedPayload{
		InvitationID: "inv-1", ProjectTitle: "Launch", InviterEmail: "o@x.com", InviterName: "Olga", MemberName: "Ana",
	})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "o@x.com" || mailer.sent[0].subject != "Ana joined Launch" {
		t.Fatalf("sent = %+v", mailer.sent)
	}

	noEmail, _ := json.Marshal(mqcontract.InvitationAcceptedPayload{InvitationID: "inv-2"})
	if err := h.Handle(context.Background(), noEmail); err != nil {
		t.Fatalf("Handle without inviter email: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatal("notice sent without inviter email")
	}
}

func TestInvitationRejectedAudit(t *testing.T) {
	h := NewInvitationRejectedHandler(newGuard(t, &fakeDLQ{}, 3), zap.NewNop())
	raw, _ := json.Marshal(mqcontract.InvitationRejectedPayload{InvitationID: "inv-1", ProjectID: "p-1", RejectedAt: time.Now()})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}
