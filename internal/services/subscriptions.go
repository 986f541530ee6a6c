package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// SubscriptionStore owns the per-channel opt-in tables for the messaging
// channels (chat and email). All mutations are single-key; one mutex over
// both tables is enough.
type SubscriptionStore struct {
	mu      sync.RWMutex
	records map[domain.Channel]map[string]*domain.Subscription // key -> record
	byToken map[string]string                                  // email unsubscribe token -> email key
	log     *zap.Logger
}

func NewSubscriptionStore(log *zap.Logger) *SubscriptionStore {
	return &SubscriptionStore{
		records: map[domain.Channel]map[string]*domain.Subscription{
			domain.ChannelChat:  {},
			domain.ChannelEmail: {},
		},
		byToken: make(map[string]string),
		log:     log,
	}
}

// Subscribe creates the recipient's record with the given opt-in flags.
// A recipient with an active record on the channel must unsubscribe first.
// Email records get a unique unsubscribe token; chat records are removed by
// their recipient key.
func (s *SubscriptionStore) Subscribe(channel domain.Channel, key string, events map[domain.EventKind]bool) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.records[channel]
	if table == nil {
		return nil, fmt.Errorf("channel %q has no subscription table", channel)
	}
	if _, exists := table[key]; exists {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrDuplicateSubscription, key, channel)
	}

	flags := make(map[domain.EventKind]bool, len(events))
	for k, v := range events {
		flags[k] = v
	}
	sub := &domain.Subscription{Channel: channel, Key: key, Events: flags}

	if channel == domain.ChannelEmail {
		sub.Token = uuid.NewString()
		s.byToken[sub.Token] = key
	}
	table[key] = sub

	s.log.Info("subscription created",
		zap.String("channel", string(channel)),
		zap.String("key", key))
	return copySub(sub), nil
}

// DefaultFlags returns the opt-in set for a fresh record: broadcast kinds on,
// targeted kinds off until an address is linked.
func DefaultFlags() map[domain.EventKind]bool {
	flags := make(map[domain.EventKind]bool)
	for _, d := range domain.MessagingCatalog() {
		flags[d.Kind] = d.Audience == domain.AudienceBroadcast
	}
	return flags
}

// Unsubscribe removes a record and returns its recipient key. Email records
// are identified by their unsubscribe token, chat records by the recipient
// key itself; chat ids never enter the token namespace.
func (s *SubscriptionStore) Unsubscribe(channel domain.Channel, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := token
	if channel == domain.ChannelEmail {
		k, ok := s.byToken[token]
		if !ok {
			return "", fmt.Errorf("%w: unsubscribe token", domain.ErrNotFound)
		}
		key = k
	}
	table := s.records[channel]
	sub, ok := table[key]
	if !ok {
		return "", fmt.Errorf("%w: no %s record for %s", domain.ErrNotFound, channel, key)
	}
	delete(table, key)
	if channel == domain.ChannelEmail {
		delete(s.byToken, sub.Token)
	}

	s.log.Info("subscription removed",
		zap.String("channel", string(channel)),
		zap.String("key", key))
	return key, nil
}

// IsSubscribed reports whether the recipient has the event kind enabled.
// Unknown recipients are not subscribed.
func (s *SubscriptionStore) IsSubscribed(channel domain.Channel, key string, kind domain.EventKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.records[channel][key]
	return ok && sub.Events[kind]
}

// SetFlags atomically replaces the recipient's opt-in set.
func (s *SubscriptionStore) SetFlags(channel domain.Channel, key string, events map[domain.EventKind]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.records[channel][key]
	if !ok {
		return fmt.Errorf("%w: no %s record for %s", domain.ErrNotFound, channel, key)
	}
	flags := make(map[domain.EventKind]bool, len(events))
	for k, v := range events {
		flags[k] = v
	}
	sub.Events = flags
	return nil
}

// LinkAddress records the recipient's address and force-enables every
// targeted messaging kind. The adoption shortcut is a policy applied here,
// at link time, not inferred per send.
func (s *SubscriptionStore) LinkAddress(channel domain.Channel, key, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.records[channel][key]
	if !ok {
		return fmt.Errorf("%w: no %s record for %s", domain.ErrNotFound, channel, key)
	}
	sub.Address = address
	for _, d := range domain.MessagingCatalog() {
		if d.Audience == domain.AudienceTargeted {
			sub.Events[d.Kind] = true
		}
	}
	return nil
}

// Get returns a copy of the recipient's record.
func (s *SubscriptionStore) Get(channel domain.Channel, key string) (*domain.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.records[channel][key]
	if !ok {
		return nil, false
	}
	return copySub(sub), true
}

// RecipientsFor returns copies of every record on the channel with the kind
// enabled, for broadcast fan-out.
func (s *SubscriptionStore) RecipientsFor(channel domain.Channel, kind domain.EventKind) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Subscription
	for _, sub := range s.records[channel] {
		if sub.Events[kind] {
			out = append(out, copySub(sub))
		}
	}
	return out
}

// All returns copies of every record on the channel.
func (s *SubscriptionStore) All(channel domain.Channel) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Subscription
	for _, sub := range s.records[channel] {
		out = append(out, copySub(sub))
	}
	return out
}

func copySub(sub *domain.Subscription) *domain.Subscription {
	c := *sub
	c.Events = make(map[domain.EventKind]bool, len(sub.Events))
	for k, v := range sub.Events {
		c.Events[k] = v
	}
	return &c
}
