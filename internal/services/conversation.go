package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// ConvState is a chat session's position in the onboarding flow.
type ConvState string

const (
	ConvUnknown   ConvState = "unknown"
	ConvOnboarded ConvState = "onboarded"
	ConvLinked    ConvState = "linked"
)

const (
	cmdStart     = "start"
	cmdStop      = "stop"
	cmdHelp      = "help"
	cmdChange    = "change"
	cmdMyAddress = "my-address"
	cmdEvents    = "events"
)

// convHandler performs one command's side effects and returns the reply plus
// the session's next state.
type convHandler func(c *Conversation, chatID, args string) (reply string, next ConvState)

// convTable is the explicit transition table: state x command -> handler.
// Commands missing from a state's row fall through to the help prompt with
// no state change.
var convTable = map[ConvState]map[string]convHandler{
	ConvUnknown: {
		cmdStart: (*Conversation).handleStart,
		cmdStop:  (*Conversation).handleStopUnknown,
		cmdHelp:  (*Conversation).handleHelp,
	},
	ConvOnboarded: {
		cmdStart:     (*Conversation).handleStartAgain,
		cmdStop:      (*Conversation).handleStop,
		cmdHelp:      (*Conversation).handleHelp,
		cmdChange:    (*Conversation).handleChange,
		cmdMyAddress: (*Conversation).handleMyAddress,
		cmdEvents:    (*Conversation).handleEvents,
	},
	ConvLinked: {
		cmdStart:     (*Conversation).handleStartAgain,
		cmdStop:      (*Conversation).handleStop,
		cmdHelp:      (*Conversation).handleHelp,
		cmdChange:    (*Conversation).handleChange,
		cmdMyAddress: (*Conversation).handleMyAddress,
		cmdEvents:    (*Conversation).handleEvents,
	},
}

// Conversation drives the per-chat-session subscription flow. All state
// beyond the ConvState enum lives in the identity registry and subscription
// store; the session table itself is just chat id -> state.
type Conversation struct {
	identity *IdentityRegistry
	subs     *SubscriptionStore
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]ConvState
}

func NewConversation(identity *IdentityRegistry, subs *SubscriptionStore, log *zap.Logger) *Conversation {
	return &Conversation{
		identity: identity,
		subs:     subs,
		log:      log,
		sessions: make(map[string]ConvState),
	}
}

// State returns the session's current state.
func (c *Conversation) State(chatID string) ConvState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[chatID]; ok {
		return s
	}
	return ConvUnknown
}

// Handle processes one inbound chat message and returns the reply text.
func (c *Conversation) Handle(chatID, text string) string {
	cmd, args := parseCommand(text)
	state := c.State(chatID)

	handler, ok := convTable[state][cmd]
	if !ok {
		return c.helpPrompt(state)
	}

	reply, next := handler(c, chatID, args)
	c.mu.Lock()
	if next == ConvUnknown {
		delete(c.sessions, chatID)
	} else {
		c.sessions[chatID] = next
	}
	c.mu.Unlock()
	return reply
}

func parseCommand(text string) (cmd, args string) {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "/")
	parts := strings.SplitN(t, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

func (c *Conversation) helpPrompt(state ConvState) string {
	if state == ConvUnknown {
		return "I don't know that one. Send /start to subscribe to notifications."
	}
	return "I don't know that one. Commands: /help /change /stop, " +
		"\"my-address <addr>\" to link your account, \"events 1,3\" after /change."
}

func (c *Conversation) handleStart(chatID, _ string) (string, ConvState) {
	if _, err := c.subs.Subscribe(domain.ChannelChat, chatID, DefaultFlags()); err != nil {
		c.log.Warn("chat subscribe failed", zap.String("chat", chatID), zap.Error(err))
		return "Could not create your subscription, please try again.", ConvUnknown
	}
	return "Welcome! You now get notified about public events." +
		"\nSend \"my-address <your address>\" to also get your personal notifications." +
		"\nSend /change to pick events, /help for an overview, /stop to leave.", ConvOnboarded
}

func (c *Conversation) handleStartAgain(chatID, _ string) (string, ConvState) {
	return "You are already subscribed. Send /stop first if you want to start over.", c.State(chatID)
}

func (c *Conversation) handleStopUnknown(_, _ string) (string, ConvState) {
	return "You are not subscribed.", ConvUnknown
}

func (c *Conversation) handleStop(chatID, _ string) (string, ConvState) {
	c.identity.Unlink(domain.ChannelChat, chatID)
	if _, err := c.subs.Unsubscribe(domain.ChannelChat, chatID); err != nil {
		c.log.Warn("chat unsubscribe failed", zap.String("chat", chatID), zap.Error(err))
	}
	return "You are unsubscribed. Send /start whenever you want back in.", ConvUnknown
}

func (c *Conversation) handleHelp(chatID, _ string) (string, ConvState) {
	state := c.State(chatID)
	if state == ConvUnknown {
		return "You are not subscribed yet. Send /start to begin.", ConvUnknown
	}

	var b strings.Builder
	b.WriteString("Your subscription (id " + chatID + ")\n")
	if addr, ok := c.identity.AddressOf(domain.ChannelChat, chatID); ok {
		b.WriteString("Linked address: " + addr + "\n")
	} else {
		b.WriteString("No address linked. Send \"my-address <addr>\" to link one.\n")
	}
	b.WriteString("Enabled events:\n")
	sub, _ := c.subs.Get(domain.ChannelChat, chatID)
	for _, d := range domain.MessagingCatalog() {
		mark := "off"
		if sub != nil && sub.Events[d.Kind] {
			mark = "on"
		}
		b.WriteString(fmt.Sprintf("  %s: %s\n", d.Title, mark))
	}
	return b.String(), state
}

func (c *Conversation) handleChange(chatID, _ string) (string, ConvState) {
	var b strings.Builder
	b.WriteString("Pick the events you want, e.g. \"events 1,3\":\n")
	for i, d := range domain.MessagingCatalog() {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, d.Title))
	}
	return b.String(), c.State(chatID)
}

func (c *Conversation) handleMyAddress(chatID, args string) (string, ConvState) {
	addr, err := domain.NormalizeAddress(args)
	if err != nil {
		return "That does not look like a valid address, please check it.", c.State(chatID)
	}
	c.identity.Link(domain.ChannelChat, chatID, addr)
	if err := c.subs.LinkAddress(domain.ChannelChat, chatID, addr); err != nil {
		c.log.Warn("link address failed", zap.String("chat", chatID), zap.Error(err))
		return "Could not link your address, please try again.", c.State(chatID)
	}
	return "Linked " + addr + ". Personal notifications are now enabled.", ConvLinked
}

// handleEvents applies an "events 1,3,5" selection. Any out-of-range index
// aborts the whole update; targeted kinds stay off while no address is
// linked.
func (c *Conversation) handleEvents(chatID, args string) (string, ConvState) {
	state := c.State(chatID)
	catalog := domain.MessagingCatalog()

	selected := make(map[int]bool)
	for _, part := range strings.Split(args, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 1 || idx > len(catalog) {
			c.log.Debug("event selection rejected",
				zap.String("chat", chatID),
				zap.Error(fmt.Errorf("%w: %q", domain.ErrInvalidCommandInput, part)))
			return fmt.Sprintf("Invalid selection %q, nothing was changed. Indices go from 1 to %d.",
				part, len(catalog)), state
		}
		selected[idx] = true
	}

	// targeted kinds silently stay off while no address is linked
	linked := state == ConvLinked
	flags := make(map[domain.EventKind]bool, len(catalog))
	for i, d := range catalog {
		on := selected[i+1]
		if on && d.Audience == domain.AudienceTargeted && !linked {
			on = false
		}
		flags[d.Kind] = on
	}
	if err := c.subs.SetFlags(domain.ChannelChat, chatID, flags); err != nil {
		c.log.Warn("set flags failed", zap.String("chat", chatID), zap.Error(err))
		return "Could not update your selection, please try again.", state
	}
	return "Your selection is saved.", state
}
