package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for ledger side-events relayed through the outbox.
const (
	RoutingKeyOrderApplied       = "ledger.order.applied"
	RoutingKeyAffiliateActivated = "affiliate.activated"
	RoutingKeyAmbiguousAffiliate = "affiliate.resolution.ambiguous"
)

// OrderAppliedEvent is published once per order that changed the ledger.
type OrderAppliedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	OrderID     string          `json:"order_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	AffiliateID *uuid.UUID      `json:"affiliate_id,omitempty"`
	Resolution  Resolution      `json:"resolution"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// AffiliateActivatedEvent is published the first time an affiliate crosses the activation threshold.
type AffiliateActivatedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	AffiliateID uuid.UUID       `json:"affiliate_id"`
	OrderID     string          `json:"order_id"`
	SelfPV      decimal.Decimal `json:"self_pv"`
	ShareUnits  int64           `json:"share_units"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// AmbiguousAffiliateEvent flags an email that matched more than one affiliate account.
type AmbiguousAffiliateEvent struct {
	EventID      uuid.UUID   `json:"event_id"`
	OrderID      string      `json:"order_id"`
	Email        string      `json:"email"`
	AffiliateIDs []uuid.UUID `json:"affiliate_ids"`
	OccurredAt   time.Time   `json:"occurred_at"`
}
