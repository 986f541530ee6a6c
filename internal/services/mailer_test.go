package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

func newTestMailSignup() (*MailSignupService, *IdentityRegistry, *SubscriptionStore) {
	log := zap.NewNop()
	identity := NewIdentityRegistry(log)
	subs := NewSubscriptionStore(log)
	return NewMailSignupService(identity, subs, log), identity, subs
}

func TestMailSignupConfirmsAndCreatesOneRecord(t *testing.T) {
	m, _, subs := newTestMailSignup()

	text, err := m.Signup("a@b.com", "", map[domain.EventKind]bool{domain.Fin4TokenCreated: true})
	require.NoError(t, err)
	assert.Contains(t, text, "Subscription confirmed")

	sub, ok := subs.Get(domain.ChannelEmail, "a@b.com")
	require.True(t, ok)
	assert.NotEmpty(t, sub.Token)
	assert.True(t, sub.Events[domain.Fin4TokenCreated])
	assert.False(t, sub.Events[domain.ClaimApproved], "targeted kinds stay off without an address")
}

func TestMailSignupDuplicate(t *testing.T) {
	m, _, subs := newTestMailSignup()

	_, err := m.Signup("a@b.com", "", map[domain.EventKind]bool{domain.Fin4TokenCreated: true})
	require.NoError(t, err)
	first, _ := subs.Get(domain.ChannelEmail, "a@b.com")

	text, err := m.Signup("a@b.com", "", nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateSubscription)
	assert.Contains(t, text, "already subscribed")

	again, ok := subs.Get(domain.ChannelEmail, "a@b.com")
	require.True(t, ok)
	assert.Equal(t, first.Token, again.Token, "previous record untouched")
}

func TestMailSignupWithAddressLinksAndEnablesTargeted(t *testing.T) {
	m, identity, subs := newTestMailSignup()

	_, err := m.Signup("a@b.com", addrA, nil)
	require.NoError(t, err)

	key, ok := identity.Resolve(domain.ChannelEmail, addrA)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", key)
	assert.True(t, subs.IsSubscribed(domain.ChannelEmail, "a@b.com", domain.ClaimApproved))
}

func TestMailSignupRejectsBadInput(t *testing.T) {
	m, _, subs := newTestMailSignup()

	_, err := m.Signup("not-an-email", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = m.Signup("a@b.com", "banana", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	_, ok := subs.Get(domain.ChannelEmail, "a@b.com")
	assert.False(t, ok, "no record on rejected signup")
}

func TestMailUnsubscribe(t *testing.T) {
	m, identity, subs := newTestMailSignup()

	_, err := m.Signup("a@b.com", addrA, nil)
	require.NoError(t, err)
	sub, _ := subs.Get(domain.ChannelEmail, "a@b.com")

	text, err := m.Unsubscribe(sub.Token)
	require.NoError(t, err)
	assert.Contains(t, text, "unsubscribed")

	_, ok := subs.Get(domain.ChannelEmail, "a@b.com")
	assert.False(t, ok)
	_, ok = identity.Resolve(domain.ChannelEmail, addrA)
	assert.False(t, ok)

	_, err = m.Unsubscribe(sub.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = m.Unsubscribe("no-such-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
