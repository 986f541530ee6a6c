package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/ports"
)

// EnrichmentCache memoizes ledger descriptor lookups per address. Descriptors
// are immutable for the process lifetime, so entries are never invalidated.
// Concurrent misses for one address coalesce into a single fetch; a failed
// fetch leaves the entry empty so the next caller retries.
type EnrichmentCache struct {
	ledger ports.LedgerQuery
	log    *zap.Logger

	mu        sync.RWMutex
	tokens    map[string]domain.TokenInfo
	verifiers map[string]domain.VerifierInfo
	inflight  singleflight.Group
}

func NewEnrichmentCache(ledger ports.LedgerQuery, log *zap.Logger) *EnrichmentCache {
	return &EnrichmentCache{
		ledger:    ledger,
		log:       log,
		tokens:    make(map[string]domain.TokenInfo),
		verifiers: make(map[string]domain.VerifierInfo),
	}
}

// TokenInfo returns the name/symbol descriptor for a token address.
func (c *EnrichmentCache) TokenInfo(ctx context.Context, addr string) (domain.TokenInfo, error) {
	c.mu.RLock()
	info, ok := c.tokens[addr]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	v, err, _ := c.inflight.Do("token:"+addr, func() (any, error) {
		// a finished flight may have filled the entry between the miss
		// above and this call
		c.mu.RLock()
		info, ok := c.tokens[addr]
		c.mu.RUnlock()
		if ok {
			return info, nil
		}
		info, err := c.ledger.TokenInfo(ctx, addr)
		if err != nil {
			c.log.Warn("token lookup failed", zap.String("address", addr), zap.Error(err))
			return nil, fmt.Errorf("%w: token %s: %v", domain.ErrEnrichmentUnavailable, addr, err)
		}
		c.mu.Lock()
		c.tokens[addr] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return domain.TokenInfo{}, err
	}
	return v.(domain.TokenInfo), nil
}

// VerifierInfo returns the type-name descriptor for a verifier address.
func (c *EnrichmentCache) VerifierInfo(ctx context.Context, addr string) (domain.VerifierInfo, error) {
	c.mu.RLock()
	info, ok := c.verifiers[addr]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	v, err, _ := c.inflight.Do("verifier:"+addr, func() (any, error) {
		c.mu.RLock()
		info, ok := c.verifiers[addr]
		c.mu.RUnlock()
		if ok {
			return info, nil
		}
		info, err := c.ledger.VerifierTypeInfo(ctx, addr)
		if err != nil {
			c.log.Warn("verifier lookup failed", zap.String("address", addr), zap.Error(err))
			return nil, fmt.Errorf("%w: verifier %s: %v", domain.ErrEnrichmentUnavailable, addr, err)
		}
		c.mu.Lock()
		c.verifiers[addr] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return domain.VerifierInfo{}, err
	}
	return v.(domain.VerifierInfo), nil
}
