package services

import (
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// MailSignupService backs the web-form signup and unsubscribe callbacks for
// the email channel. Replies are user-visible strings rendered straight into
// the form response.
type MailSignupService struct {
	identity *IdentityRegistry
	subs     *SubscriptionStore
	log      *zap.Logger
}

func NewMailSignupService(identity *IdentityRegistry, subs *SubscriptionStore, log *zap.Logger) *MailSignupService {
	return &MailSignupService{identity: identity, subs: subs, log: log}
}

// Signup creates an email subscription. The address is optional; without one
// the recipient only receives broadcast-class events.
func (m *MailSignupService) Signup(email, address string, events map[domain.EventKind]bool) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "That does not look like a valid email address.", domain.ErrInvalidAddress
	}

	var linked string
	if strings.TrimSpace(address) != "" {
		normalized, err := domain.NormalizeAddress(address)
		if err != nil {
			return "That does not look like a valid account address.", err
		}
		linked = normalized
	}

	flags := make(map[domain.EventKind]bool)
	for _, d := range domain.MessagingCatalog() {
		// targeted kinds stay off here; linking below force-enables them
		flags[d.Kind] = events[d.Kind] && d.Audience == domain.AudienceBroadcast
	}

	if _, err := m.subs.Subscribe(domain.ChannelEmail, email, flags); err != nil {
		if errors.Is(err, domain.ErrDuplicateSubscription) {
			return "You are already subscribed with this email address. Unsubscribe first to change your settings.", err
		}
		return "Subscription failed, please try again.", err
	}

	if linked != "" {
		m.identity.Link(domain.ChannelEmail, email, linked)
		if err := m.subs.LinkAddress(domain.ChannelEmail, email, linked); err != nil {
			m.log.Warn("mail link address failed", zap.String("email", email), zap.Error(err))
		}
	}

	m.log.Info("mail signup", zap.String("email", email), zap.Bool("linked", linked != ""))
	return "Subscription confirmed. Every mail carries an unsubscribe link.", nil
}

// Unsubscribe removes the record behind an unsubscribe token.
func (m *MailSignupService) Unsubscribe(token string) (string, error) {
	email, err := m.subs.Unsubscribe(domain.ChannelEmail, token)
	if err != nil {
		return "This unsubscribe link is unknown or was already used.", err
	}
	m.identity.Unlink(domain.ChannelEmail, email)
	m.log.Info("mail unsubscribed", zap.String("email", email))
	return "You are unsubscribed and will receive no further mails.", nil
}
