package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/ports"
)

// DispatcherConfig carries the router's timing knobs.
type DispatcherConfig struct {
	// Blackout is how long after activation replayed historical events are
	// discarded. The event source replays recent history on first
	// subscription; everything inside this window is noise.
	Blackout time.Duration
	// DeliveryTimeout bounds each adapter call. A timeout counts as a
	// delivery failure.
	DeliveryTimeout time.Duration
}

// Dispatcher consumes raw contract events and fans finished messages out to
// the channel adapters. It starts Uninitialized and must be activated once
// the satellite contract handles are resolved; events arriving earlier are
// defects.
type Dispatcher struct {
	cfg      DispatcherConfig
	bus      ports.EventBus
	identity *IdentityRegistry
	subs     *SubscriptionStore
	renderer *Renderer
	push     ports.PushChannel
	chat     ports.ChatSender
	mail     ports.MailSender
	log      *zap.Logger

	mu          sync.Mutex
	active      bool
	activatedAt time.Time
	nowFn       func() time.Time

	deliveries sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, bus ports.EventBus, identity *IdentityRegistry, subs *SubscriptionStore, renderer *Renderer, push ports.PushChannel, chat ports.ChatSender, mail ports.MailSender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		bus:      bus,
		identity: identity,
		subs:     subs,
		renderer: renderer,
		push:     push,
		chat:     chat,
		mail:     mail,
		log:      log,
		nowFn:    time.Now,
	}
}

// Activate transitions the router to Active and starts the blackout window.
// Called once, after the event source has resolved all contract handles.
func (d *Dispatcher) Activate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return
	}
	d.active = true
	d.activatedAt = d.nowFn()
	d.log.Info("dispatcher active", zap.Duration("blackout", d.cfg.Blackout))
}

// Run consumes every contract topic until ctx is done. Each topic gets its
// own goroutine: within one contract events are processed in order, while a
// render suspended on an enrichment fetch never blocks the other contracts.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, contract := range domain.Contracts() {
		ch, unsubscribe := d.bus.SubscribeTopic(contract)
		wg.Add(1)
		go func(contract string, ch <-chan domain.ContractEvent, unsubscribe func()) {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-ch:
					if !ok {
						return
					}
					d.OnEvent(ctx, raw)
				}
			}
		}(contract, ch, unsubscribe)
	}
	wg.Wait()
}

// OnEvent routes one raw contract event.
func (d *Dispatcher) OnEvent(ctx context.Context, raw domain.ContractEvent) {
	d.mu.Lock()
	active, activatedAt := d.active, d.activatedAt
	now := d.nowFn()
	d.mu.Unlock()

	if !active {
		d.log.Error("defect: event dropped",
			zap.String("kind", string(raw.Kind)),
			zap.Error(domain.ErrPrematureEvent))
		return
	}
	if now.Sub(activatedAt) < d.cfg.Blackout {
		// replayed historical event, no side effects
		return
	}

	evt, err := domain.Normalize(raw)
	if err != nil {
		d.log.Error("defect: event dropped", zap.String("kind", string(raw.Kind)), zap.Error(err))
		return
	}

	desc, ok := domain.DescriptorFor(evt.Kind)
	if !ok {
		// not in the catalog: push frontends still get it raw
		d.deliver(fmt.Sprintf("push broadcast %s", evt.Kind), func() error {
			return d.push.Broadcast(evt.Kind, evt.Fields)
		})
		return
	}

	if desc.Audience == domain.AudienceBroadcast {
		d.dispatchBroadcast(ctx, desc, evt)
	} else {
		d.dispatchTargeted(ctx, desc, evt)
	}
}

func (d *Dispatcher) dispatchBroadcast(ctx context.Context, desc domain.EventDescriptor, evt domain.Event) {
	d.deliver(fmt.Sprintf("push broadcast %s", evt.Kind), func() error {
		return d.push.Broadcast(evt.Kind, evt.Fields)
	})
	if !desc.Messaging {
		return
	}

	if recipients := d.subs.RecipientsFor(domain.ChannelChat, evt.Kind); len(recipients) > 0 {
		text, err := d.renderer.Render(ctx, evt.Kind, evt.Fields, ChatStyle)
		if err != nil {
			d.log.Warn("chat render failed", zap.String("kind", string(evt.Kind)), zap.Error(err))
		} else if text != "" {
			for _, sub := range recipients {
				key := sub.Key
				d.deliver(fmt.Sprintf("chat %s to %s", evt.Kind, key), func() error {
					return d.chat.Send(key, text)
				})
			}
		}
	}

	if recipients := d.subs.RecipientsFor(domain.ChannelEmail, evt.Kind); len(recipients) > 0 {
		body, err := d.renderer.Render(ctx, evt.Kind, evt.Fields, HTMLStyle)
		if err != nil {
			d.log.Warn("mail render failed", zap.String("kind", string(evt.Kind)), zap.Error(err))
		} else if body != "" {
			for _, sub := range recipients {
				key := sub.Key
				d.deliver(fmt.Sprintf("mail %s to %s", evt.Kind, key), func() error {
					return d.mail.Send(key, desc.Title, body)
				})
			}
		}
	}
}

func (d *Dispatcher) dispatchTargeted(ctx context.Context, desc domain.EventDescriptor, evt domain.Event) {
	// push delivery is gated on a live socket session only, never on the
	// messaging subscription flags
	if session, ok := d.identity.Resolve(domain.ChannelPush, evt.Target); ok {
		d.deliver(fmt.Sprintf("push %s to %s", evt.Kind, evt.Target), func() error {
			return d.push.SendTo(session, evt.Kind, evt.Fields)
		})
	}
	if !desc.Messaging {
		return
	}

	if chatID, ok := d.identity.Resolve(domain.ChannelChat, evt.Target); ok && d.subs.IsSubscribed(domain.ChannelChat, chatID, evt.Kind) {
		text, err := d.renderer.Render(ctx, evt.Kind, evt.Fields, ChatStyle)
		if err != nil {
			d.log.Warn("chat render failed", zap.String("kind", string(evt.Kind)), zap.Error(err))
		} else if text != "" {
			d.deliver(fmt.Sprintf("chat %s to %s", evt.Kind, chatID), func() error {
				return d.chat.Send(chatID, text)
			})
		}
	}

	if email, ok := d.identity.Resolve(domain.ChannelEmail, evt.Target); ok && d.subs.IsSubscribed(domain.ChannelEmail, email, evt.Kind) {
		body, err := d.renderer.Render(ctx, evt.Kind, evt.Fields, HTMLStyle)
		if err != nil {
			d.log.Warn("mail render failed", zap.String("kind", string(evt.Kind)), zap.Error(err))
		} else if body != "" {
			d.deliver(fmt.Sprintf("mail %s to %s", evt.Kind, email), func() error {
				return d.mail.Send(email, desc.Title, body)
			})
		}
	}
}

// deliver runs one adapter call in its own goroutine with a bounded timeout.
// Failures are logged per recipient and never abort sibling deliveries.
func (d *Dispatcher) deliver(desc string, call func() error) {
	d.deliveries.Add(1)
	go func() {
		defer d.deliveries.Done()
		errCh := make(chan error, 1)
		go func() { errCh <- call() }()

		timeout := d.cfg.DeliveryTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case err := <-errCh:
			if err != nil {
				d.log.Warn("delivery failed", zap.String("delivery", desc), zap.Error(err))
			}
		case <-timer.C:
			d.log.Warn("delivery timed out", zap.String("delivery", desc))
		}
	}()
}

// Drain waits for in-flight deliveries, for graceful shutdown.
func (d *Dispatcher) Drain() {
	d.deliveries.Wait()
}
