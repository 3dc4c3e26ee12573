package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompanyCounterID is the key of the singleton monthly PV counter row.
const CompanyCounterID = "monthly_pv"

var (
	// ShareUnitPV is the PV block that earns one share unit.
	ShareUnitPV = decimal.NewFromInt(500)
	// ActivationThresholdPV is the personal PV at which an affiliate becomes active.
	ActivationThresholdPV = decimal.NewFromInt(500)
)

// Resolution describes how an order's customer mapped onto affiliate accounts.
type Resolution string

const (
	ResolutionMatched   Resolution = "matched"
	ResolutionNoEmail   Resolution = "no_email"
	ResolutionNoMatch   Resolution = "no_match"
	ResolutionAmbiguous Resolution = "ambiguous"
)

// AffiliateRef is the minimal projection returned by an email lookup.
type AffiliateRef struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AffiliateCredit is the post-increment state of an affiliate after an order was applied.
type AffiliateCredit struct {
	AffiliateID uuid.UUID       `json:"affiliate_id"`
	SelfPV      decimal.Decimal `json:"self_pv"`
	ShareUnits  int64           `json:"share_units"`
	IsActive    bool            `json:"is_active"`
	Activated   bool            `json:"activated"`
}

// ShareUnitsFor returns floor(selfPV / ShareUnitPV). Negative input yields zero.
func ShareUnitsFor(selfPV decimal.Decimal) int64 {
	if selfPV.Sign() <= 0 {
		return 0
	}
	return selfPV.Div(ShareUnitPV).Floor().IntPart()
}

// ProcessedOrder is the idempotency record written once per applied order.
type ProcessedOrder struct {
	OrderID     string          `json:"order_id"`
	WebhookID   string          `json:"webhook_id,omitempty"`
	ShopDomain  string          `json:"shop_domain,omitempty"`
	Topic       string          `json:"topic"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	AffiliateID *uuid.UUID      `json:"affiliate_id,omitempty"`
	Resolution  Resolution      `json:"resolution"`
	AppliedAt   time.Time       `json:"applied_at"`
}

// LedgerStatus is the outcome of applying one order.
type LedgerStatus string

const (
	LedgerApplied   LedgerStatus = "processed"
	LedgerDuplicate LedgerStatus = "duplicate"
)

// LedgerResult summarizes a single ledger application.
type LedgerResult struct {
	Status     LedgerStatus     `json:"status"`
	OrderID    string           `json:"order_id"`
	Resolution Resolution       `json:"resolution,omitempty"`
	CompanyPV  *decimal.Decimal `json:"company_pv,omitempty"`
	Affiliate  *AffiliateCredit `json:"affiliate,omitempty"`
}

// ShopifyCredentials are the Admin API credentials used for product reads.
type ShopifyCredentials struct {
	StoreURL    string `json:"store_url"`
	AccessToken string `json:"-"`
}

// Complete reports whether both credential fields are present.
func (c ShopifyCredentials) Complete() bool {
	return c.StoreURL != "" && c.AccessToken != ""
}
