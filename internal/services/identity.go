package services

import (
	"sync"

	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// IdentityRegistry holds the bidirectional session<->address maps for each
// channel. Links exist only while a session is connected or subscribed;
// relinking a session overwrites its previous mapping, as does relinking an
// address on the same channel.
type IdentityRegistry struct {
	mu        sync.RWMutex
	byAddress map[domain.Channel]map[string]string // address -> session id
	bySession map[domain.Channel]map[string]string // session id -> address
	log       *zap.Logger
}

func NewIdentityRegistry(log *zap.Logger) *IdentityRegistry {
	return &IdentityRegistry{
		byAddress: make(map[domain.Channel]map[string]string),
		bySession: make(map[domain.Channel]map[string]string),
		log:       log,
	}
}

// Link maps sessionID to address on the given channel, replacing any prior
// mapping for either side. The address must already be normalized.
func (r *IdentityRegistry) Link(channel domain.Channel, sessionID, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fwd := r.table(r.byAddress, channel)
	rev := r.table(r.bySession, channel)

	if old, ok := rev[sessionID]; ok {
		delete(fwd, old)
	}
	if old, ok := fwd[address]; ok {
		delete(rev, old)
	}
	fwd[address] = sessionID
	rev[sessionID] = address

	r.log.Info("identity linked",
		zap.String("channel", string(channel)),
		zap.String("session", sessionID),
		zap.String("address", address))
}

// Unlink removes the session's mapping and its reverse. Unknown sessions are
// a no-op.
func (r *IdentityRegistry) Unlink(channel domain.Channel, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev := r.table(r.bySession, channel)
	address, ok := rev[sessionID]
	if !ok {
		return
	}
	delete(rev, sessionID)
	delete(r.table(r.byAddress, channel), address)

	r.log.Info("identity unlinked",
		zap.String("channel", string(channel)),
		zap.String("session", sessionID),
		zap.String("address", address))
}

// Resolve returns the session id linked to address on the channel.
func (r *IdentityRegistry) Resolve(channel domain.Channel, address string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byAddress[channel][address]
	return s, ok
}

// AddressOf returns the address linked to a session on the channel.
func (r *IdentityRegistry) AddressOf(channel domain.Channel, sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySession[channel][sessionID]
	return a, ok
}

func (r *IdentityRegistry) table(m map[domain.Channel]map[string]string, channel domain.Channel) map[string]string {
	t, ok := m[channel]
	if !ok {
		t = make(map[string]string)
		m[channel] = t
	}
	return t
}
