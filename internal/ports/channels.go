package ports

import "github.com/FuturICT2/FIN4NotificationServer/internal/domain"

// PushChannel delivers raw event payloads to connected frontends.
type PushChannel interface {
	Broadcast(kind domain.EventKind, payload map[string]string) error
	SendTo(sessionID string, kind domain.EventKind, payload map[string]string) error
}

// ChatSender sends a rendered message to a chat session.
type ChatSender interface {
	Send(chatID string, text string) error
}

// MailSender sends a rendered HTML message to an email address.
type MailSender interface {
	Send(to string, subject string, htmlBody string) error
}
