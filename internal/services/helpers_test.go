package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// fakeLedger counts external lookups and can be told to fail or to block
// until released.
type fakeLedger struct {
	tokens    map[string]domain.TokenInfo
	verifiers map[string]domain.VerifierInfo
	fail      atomic.Bool
	calls     atomic.Int64
	gate      chan struct{} // when set, lookups block until closed
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		tokens:    make(map[string]domain.TokenInfo),
		verifiers: make(map[string]domain.VerifierInfo),
	}
}

func (f *fakeLedger) TokenInfo(ctx context.Context, addr string) (domain.TokenInfo, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return domain.TokenInfo{}, fmt.Errorf("node unreachable")
	}
	info, ok := f.tokens[addr]
	if !ok {
		return domain.TokenInfo{}, fmt.Errorf("unknown token %s", addr)
	}
	return info, nil
}

func (f *fakeLedger) VerifierTypeInfo(ctx context.Context, addr string) (domain.VerifierInfo, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return domain.VerifierInfo{}, fmt.Errorf("node unreachable")
	}
	info, ok := f.verifiers[addr]
	if !ok {
		return domain.VerifierInfo{}, fmt.Errorf("unknown verifier %s", addr)
	}
	return info, nil
}

type pushCall struct {
	Session string // empty for broadcast
	Kind    domain.EventKind
	Payload map[string]string
}

type fakePush struct {
	mu    sync.Mutex
	calls []pushCall
}

func (f *fakePush) Broadcast(kind domain.EventKind, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{Kind: kind, Payload: payload})
	return nil
}

func (f *fakePush) SendTo(sessionID string, kind domain.EventKind, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{Session: sessionID, Kind: kind, Payload: payload})
	return nil
}

func (f *fakePush) all() []pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushCall(nil), f.calls...)
}

// blockedPush wedges every call until release is closed, for timeout tests.
type blockedPush struct {
	release chan struct{}
}

func (b *blockedPush) Broadcast(domain.EventKind, map[string]string) error {
	<-b.release
	return nil
}

func (b *blockedPush) SendTo(string, domain.EventKind, map[string]string) error {
	<-b.release
	return nil
}

type chatCall struct {
	ChatID string
	Text   string
}

type fakeChat struct {
	mu    sync.Mutex
	calls []chatCall
	err   error
}

func (f *fakeChat) Send(chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatCall{ChatID: chatID, Text: text})
	return f.err
}

func (f *fakeChat) all() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatCall(nil), f.calls...)
}

type mailCall struct {
	To      string
	Subject string
	Body    string
}

type fakeMail struct {
	mu    sync.Mutex
	calls []mailCall
}

func (f *fakeMail) Send(to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mailCall{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (f *fakeMail) all() []mailCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailCall(nil), f.calls...)
}
