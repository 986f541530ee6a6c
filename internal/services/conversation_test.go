package services

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

func newTestConversation() (*Conversation, *IdentityRegistry, *SubscriptionStore) {
	log := zap.NewNop()
	identity := NewIdentityRegistry(log)
	subs := NewSubscriptionStore(log)
	return NewConversation(identity, subs, log), identity, subs
}

func TestConversationStartOnboards(t *testing.T) {
	conv, _, subs := newTestConversation()

	assert.Equal(t, ConvUnknown, conv.State("42"))
	reply := conv.Handle("42", "/start")
	assert.Contains(t, reply, "Welcome")
	assert.Equal(t, ConvOnboarded, conv.State("42"))

	// broadcast kinds on, targeted kinds off
	assert.True(t, subs.IsSubscribed(domain.ChannelChat, "42", domain.Fin4TokenCreated))
	assert.False(t, subs.IsSubscribed(domain.ChannelChat, "42", domain.ClaimApproved))
}

func TestConversationStartTwice(t *testing.T) {
	conv, _, _ := newTestConversation()
	conv.Handle("42", "/start")
	reply := conv.Handle("42", "/start")
	assert.Contains(t, reply, "already subscribed")
	assert.Equal(t, ConvOnboarded, conv.State("42"))
}

func TestConversationMyAddressLinks(t *testing.T) {
	conv, identity, subs := newTestConversation()
	conv.Handle("42", "/start")

	reply := conv.Handle("42", "my-address "+addrA)
	assert.Contains(t, reply, addrA)
	assert.Equal(t, ConvLinked, conv.State("42"))

	session, ok := identity.Resolve(domain.ChannelChat, addrA)
	require.True(t, ok)
	assert.Equal(t, "42", session)
	assert.True(t, subs.IsSubscribed(domain.ChannelChat, "42", domain.ClaimApproved))
}

func TestConversationMyAddressInvalid(t *testing.T) {
	conv, identity, _ := newTestConversation()
	conv.Handle("42", "/start")

	reply := conv.Handle("42", "my-address banana")
	assert.Contains(t, reply, "valid address")
	assert.Equal(t, ConvOnboarded, conv.State("42"), "invalid address must not transition")
	_, ok := identity.AddressOf(domain.ChannelChat, "42")
	assert.False(t, ok)
}

func TestConversationStopFromAnyState(t *testing.T) {
	conv, identity, subs := newTestConversation()
	conv.Handle("42", "/start")
	conv.Handle("42", "my-address "+addrA)

	reply := conv.Handle("42", "/stop")
	assert.Contains(t, reply, "unsubscribed")
	assert.Equal(t, ConvUnknown, conv.State("42"))
	_, ok := identity.AddressOf(domain.ChannelChat, "42")
	assert.False(t, ok)
	_, ok = subs.Get(domain.ChannelChat, "42")
	assert.False(t, ok)
}

func TestConversationStopWhenUnknown(t *testing.T) {
	conv, _, _ := newTestConversation()
	reply := conv.Handle("42", "/stop")
	assert.Contains(t, reply, "not subscribed")
}

func TestConversationChangeListsCatalog(t *testing.T) {
	conv, _, _ := newTestConversation()
	conv.Handle("42", "/start")

	reply := conv.Handle("42", "/change")
	catalog := domain.MessagingCatalog()
	assert.Contains(t, reply, "1. "+catalog[0].Title)
	for _, d := range catalog {
		assert.Contains(t, reply, d.Title)
	}
	assert.Equal(t, ConvOnboarded, conv.State("42"), "change is read-only")
}

func TestConversationEventsSelection(t *testing.T) {
	conv, _, subs := newTestConversation()
	conv.Handle("42", "/start")
	conv.Handle("42", "my-address "+addrA)

	reply := conv.Handle("42", "events 1,4")
	assert.Contains(t, reply, "saved")

	catalog := domain.MessagingCatalog()
	for i, d := range catalog {
		want := i == 0 || i == 3
		assert.Equal(t, want, subs.IsSubscribed(domain.ChannelChat, "42", d.Kind), "kind %s", d.Kind)
	}
}

func TestConversationEventsOutOfRangeAbortsWholeUpdate(t *testing.T) {
	conv, _, subs := newTestConversation()
	conv.Handle("42", "/start")

	before, ok := subs.Get(domain.ChannelChat, "42")
	require.True(t, ok)

	reply := conv.Handle("42", "events 1,999")
	assert.Contains(t, reply, "Invalid selection")

	after, ok := subs.Get(domain.ChannelChat, "42")
	require.True(t, ok)
	assert.Equal(t, before.Events, after.Events, "no partial change on invalid index")
}

func TestConversationEventsTargetedDowngradedWhileUnlinked(t *testing.T) {
	conv, _, subs := newTestConversation()
	conv.Handle("42", "/start")

	catalog := domain.MessagingCatalog()
	// select everything
	selection := "events 1"
	for i := 2; i <= len(catalog); i++ {
		selection += "," + strconv.Itoa(i)
	}
	reply := conv.Handle("42", selection)
	assert.Contains(t, reply, "saved")

	for _, d := range catalog {
		if d.Audience == domain.AudienceTargeted {
			assert.False(t, subs.IsSubscribed(domain.ChannelChat, "42", d.Kind),
				"targeted kind %s cannot be enabled without a linked address", d.Kind)
		} else {
			assert.True(t, subs.IsSubscribed(domain.ChannelChat, "42", d.Kind))
		}
	}
}

func TestConversationHelpReportsState(t *testing.T) {
	conv, _, _ := newTestConversation()
	conv.Handle("42", "/start")
	conv.Handle("42", "my-address "+addrA)

	reply := conv.Handle("42", "/help")
	assert.Contains(t, reply, "42")
	assert.Contains(t, reply, addrA)
	assert.Equal(t, ConvLinked, conv.State("42"), "help is read-only")
}

func TestConversationUnrecognizedInput(t *testing.T) {
	conv, _, _ := newTestConversation()

	reply := conv.Handle("42", "what is this")
	assert.Contains(t, reply, "/start")
	assert.Equal(t, ConvUnknown, conv.State("42"))

	conv.Handle("42", "/start")
	reply = conv.Handle("42", "gibberish")
	assert.Contains(t, reply, "/help")
	assert.Equal(t, ConvOnboarded, conv.State("42"))
}
