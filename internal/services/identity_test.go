package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestIdentityLinkResolveUnlink(t *testing.T) {
	r := NewIdentityRegistry(zap.NewNop())

	r.Link(domain.ChannelPush, "sock-1", addrA)

	session, ok := r.Resolve(domain.ChannelPush, addrA)
	require.True(t, ok)
	assert.Equal(t, "sock-1", session)

	addr, ok := r.AddressOf(domain.ChannelPush, "sock-1")
	require.True(t, ok)
	assert.Equal(t, addrA, addr)

	r.Unlink(domain.ChannelPush, "sock-1")
	_, ok = r.Resolve(domain.ChannelPush, addrA)
	assert.False(t, ok)
	_, ok = r.AddressOf(domain.ChannelPush, "sock-1")
	assert.False(t, ok)
}

func TestIdentityReconnectOverwrites(t *testing.T) {
	r := NewIdentityRegistry(zap.NewNop())

	r.Link(domain.ChannelPush, "sock-1", addrA)
	r.Link(domain.ChannelPush, "sock-2", addrA)

	session, ok := r.Resolve(domain.ChannelPush, addrA)
	require.True(t, ok)
	assert.Equal(t, "sock-2", session)
	// the old session lost its reverse mapping too
	_, ok = r.AddressOf(domain.ChannelPush, "sock-1")
	assert.False(t, ok)
}

func TestIdentitySessionSwitchesAddress(t *testing.T) {
	r := NewIdentityRegistry(zap.NewNop())

	r.Link(domain.ChannelChat, "42", addrA)
	r.Link(domain.ChannelChat, "42", addrB)

	_, ok := r.Resolve(domain.ChannelChat, addrA)
	assert.False(t, ok)
	session, ok := r.Resolve(domain.ChannelChat, addrB)
	require.True(t, ok)
	assert.Equal(t, "42", session)
}

func TestIdentityChannelsAreIndependent(t *testing.T) {
	r := NewIdentityRegistry(zap.NewNop())

	r.Link(domain.ChannelPush, "sock-1", addrA)
	r.Link(domain.ChannelChat, "42", addrA)
	r.Link(domain.ChannelEmail, "a@b.com", addrA)

	for _, tc := range []struct {
		channel domain.Channel
		session string
	}{
		{domain.ChannelPush, "sock-1"},
		{domain.ChannelChat, "42"},
		{domain.ChannelEmail, "a@b.com"},
	} {
		session, ok := r.Resolve(tc.channel, addrA)
		require.True(t, ok, "channel %s", tc.channel)
		assert.Equal(t, tc.session, session)
	}

	r.Unlink(domain.ChannelChat, "42")
	_, ok := r.Resolve(domain.ChannelPush, addrA)
	assert.True(t, ok)
	_, ok = r.Resolve(domain.ChannelChat, addrA)
	assert.False(t, ok)
}

func TestIdentityUnknownKeysResolveAbsent(t *testing.T) {
	r := NewIdentityRegistry(zap.NewNop())
	_, ok := r.Resolve(domain.ChannelPush, addrA)
	assert.False(t, ok)
	r.Unlink(domain.ChannelPush, "never-linked") // no-op
}
