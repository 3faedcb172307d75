package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
)

// Sender delivers a password reset token to an address.
type Sender interface {
	Send(ctx context.Context, email, token string) error
}

// SMTPSender sends plain-text reset mails over implicit TLS (SMTPS).
type SMTPSender struct {
	cfg config.Mail
}

func NewSMTPSender(cfg config.Mail) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// ResetLink formats the reset URL for token.
func ResetLink(format, token string) string {
	if !strings.Contains(format, "%s") {
		return format + token
	}
	return fmt.Sprintf(format, token)
}

// BuildResetMessage returns the RFC 5322 message for a reset mail.
func BuildResetMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", "Password recovery") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("To reset your password follow the link:\r\n")
	b.WriteString(link + "\r\n")
	return []byte(b.String())
}

func (s *SMTPSender) Send(ctx context.Context, email, token string) error {
	if s.cfg.User == "" {
		return errors.New("smtp user not configured")
	}
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid recipient %q", email)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.cfg.Timeout},
		Config:    &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else if s.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(s.cfg.User); err != nil {
		return err
	}
	if err := c.Rcpt(email); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	msg := BuildResetMessage(s.cfg.User, email, ResetLink(s.cfg.ResetURL, token))
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
