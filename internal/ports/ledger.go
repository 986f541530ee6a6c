package ports

import (
	"context"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// LedgerQuery reads descriptors for on-chain addresses. Implementations hit
// the node; callers go through the enrichment cache instead.
type LedgerQuery interface {
	TokenInfo(ctx context.Context, addr string) (domain.TokenInfo, error)
	VerifierTypeInfo(ctx context.Context, addr string) (domain.VerifierInfo, error)
}
