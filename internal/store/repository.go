/**
 * @description
 * This file defines the contracts for all data access needed by the ledger service.
 * The ledger mutation path runs through `LedgerTx`, a handle scoped to a single
 * database transaction, so the idempotency record, both counter increments and the
 * outbox rows commit together or not at all.
 *
 * @dependencies
 * - github.com/google/uuid, github.com/shopspring/decimal
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

// LedgerTx is the set of operations available inside one ledger transaction.
type LedgerTx interface {
	// FindAffiliatesByEmail returns up to limit accounts whose normalized email equals email.
	FindAffiliatesByEmail(ctx context.Context, email string, limit int) ([]domain.AffiliateRef, error)
	// ReserveOrder inserts the idempotency record. It returns false when the order was already applied.
	ReserveOrder(ctx context.Context, record domain.ProcessedOrder) (bool, error)
	// IncrementCompanyPV adds amount to the monthly counter and returns the new total.
	IncrementCompanyPV(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	// CreditAffiliatePV adds amount to an affiliate's self PV, recomputes share units and applies activation.
	CreditAffiliatePV(ctx context.Context, affiliateID uuid.UUID, amount decimal.Decimal) (*domain.AffiliateCredit, error)
	// EnqueueEvent writes an outbox row that is relayed to the broker after commit.
	EnqueueEvent(ctx context.Context, exchange, routingKey string, payload interface{}) error
}

// LedgerRepository runs ledger transactions.
type LedgerRepository interface {
	// WithinLedgerTx runs fn inside a transaction. The transaction commits only when fn returns nil.
	WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// OutboxRepository backs the outbox dispatcher.
type OutboxRepository interface {
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
}

// Repository is everything the service needs from the database.
type Repository interface {
	LedgerRepository
	OutboxRepository

	GetEligibilityFacts(ctx context.Context, affiliateID uuid.UUID) (*domain.EligibilityFacts, error)
	GetShopifyCredentials(ctx context.Context) (*domain.ShopifyCredentials, error)
	PruneProcessedOrders(ctx context.Context, appliedBefore time.Time) (int64, error)
}

// OutboxMessage is a claimed, not yet published outbox row.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}
