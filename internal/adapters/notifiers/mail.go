package notifiers

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPMailer sends the rendered HTML bodies through a plain SMTP relay.
// With an empty host it degrades to a no-op, mirroring how the telegram
// sender behaves without a token.
type SMTPMailer struct {
	addr string // host:port, empty disables sending
	from string
	auth smtp.Auth
	log  *zap.Logger

	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host, port, from, username, password string, log *zap.Logger) *SMTPMailer {
	m := &SMTPMailer{from: from, log: log, sendFn: smtp.SendMail}
	if host == "" {
		return m
	}
	m.addr = fmt.Sprintf("%s:%s", host, port)
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if m.addr == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	if err := m.sendFn(m.addr, m.auth, m.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	m.log.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
