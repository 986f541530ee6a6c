package eventbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/ports"
)

// inMemoryEventBus fans raw contract events out per topic (contract name).
// One buffered channel per subscriber keeps a slow topic from blocking the
// publisher; within a topic, subscribers observe publish order.
type inMemoryEventBus struct {
	mu     sync.RWMutex
	topics map[string]map[chan domain.ContractEvent]struct{}
	log    *zap.Logger
}

func NewInMemoryEventBus(log *zap.Logger) ports.EventBus {
	return &inMemoryEventBus{
		topics: make(map[string]map[chan domain.ContractEvent]struct{}),
		log:    log,
	}
}

func (b *inMemoryEventBus) Publish(event domain.ContractEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.topics[event.Contract] {
		select {
		case ch <- event:
		default:
			// subscriber fell too far behind, shed instead of wedging
			// the watcher
			b.log.Warn("event shed, subscriber buffer full",
				zap.String("contract", event.Contract),
				zap.String("kind", string(event.Kind)))
		}
	}
}

func (b *inMemoryEventBus) SubscribeTopic(contract string) (<-chan domain.ContractEvent, func()) {
	ch := make(chan domain.ContractEvent, 64)
	b.mu.Lock()
	subs, ok := b.topics[contract]
	if !ok {
		subs = make(map[chan domain.ContractEvent]struct{})
		b.topics[contract] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if subs, ok := b.topics[contract]; ok {
			if _, present := subs[ch]; present {
				delete(subs, ch)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}
