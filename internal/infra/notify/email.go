package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure SMTPSender implements domain.EmailSender.
var _ domain.EmailSender = (*SMTPSender)(nil)

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends plain-text mail through an SMTP relay.
type SMTPSender struct {
	now      func() time.Time
	sendMail sendMailFunc
	cfg      domain.SMTPConfig
}

// NewSMTPSender creates a sender for the configured relay.
func NewSMTPSender(cfg domain.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:      cfg,
		now:      time.Now,
		sendMail: smtp.SendMail,
	}
}

// Send delivers msg. The password, if any, is read from the environment
// variable named by the configuration.
func (s *SMTPSender) Send(ctx context.Context, msg domain.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Host == "" {
		return errors.New("smtp host not configured")
	}
	if len(msg.To) == 0 {
		return errors.New("no email recipients")
	}

	from := s.cfg.From
	if from == "" {
		from = "cimatrix@localhost"
	}
	port := s.cfg.Port
	if port == 0 {
		port = domain.DefaultSMTPPort
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		password := ""
		if s.cfg.PasswordEnv != "" {
			password = os.Getenv(s.cfg.PasswordEnv)
		}
		auth = smtp.PlainAuth("", s.cfg.Username, password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	if err := s.sendMail(addr, auth, from, msg.To, s.format(from, msg)); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	return nil
}

// format renders msg as an RFC 5322 message with CRLF line endings.
func (s *SMTPSender) format(from string, msg domain.EmailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
