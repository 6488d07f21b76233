package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	pkgconfig "projecthub/pkg/config"
	"projecthub/pkg/metrics"
)

// Mailer 发送 HTML 邮件，返回 Message-ID
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// SMTPMailer 基于 gomail 的 SMTP 实现
type SMTPMailer struct {
	cfg    pkgconfig.SMTPConfig
	send   func(*gomail.Message) error
	logger *zap.Logger
}

func NewSMTPMailer(cfg pkgconfig.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, logger: logger}
	m.send = func(msg *gomail.Message) error {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
		return d.DialAndSend(msg)
	}
	return m
}

// Configured host 和 from 都存在时才真正发送
func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

// Send 未配置 SMTP 时只记录日志并跳过
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", fmt.Errorf("empty recipient")
	}
	if !m.Configured() {
		m.logger.Warn("SMTP not configured, skip email", zap.String("to", to), zap.String("subject", subject))
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := m.newMessageID()
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", html)

	if err := m.send(msg); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	m.logger.Info("Email sent", zap.String("to", to), zap.String("message_id", messageID))
	return messageID, nil
}

func (m *SMTPMailer) newMessageID() string {
	domain := "projecthub.local"
	if addr, err := mail.ParseAddress(m.cfg.From); err == nil {
		if i := strings.LastIndex(addr.Address, "@"); i >= 0 {
			domain = addr.Address[i+1:]
		}
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// RecordingMailer 包装 Mailer，按模板记录发送结果
type RecordingMailer struct {
	Mailer
	Template string
}

func (r RecordingMailer) Send(ctx context.Context, to, subject, html string) (string, error) {
	id, err := r.Mailer.Send(ctx, to, subject, html)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncrementEmailSent(r.Template, status)
	return id, err
}
