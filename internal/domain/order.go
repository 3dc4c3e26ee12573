/**
 * @description
 * Models for the Shopify order webhooks accepted by the ledger service. Only the
 * fields the ledger needs are decoded; everything else in the payload is ignored.
 *
 * @notes
 * - The order `id` is the business identifier and the only safe dedupe key. The
 *   `X-Shopify-Webhook-Id` header changes per delivery attempt and is kept for tracing.
 * - `total_price` arrives as a decimal string ("500.00"). decimal.Decimal accepts
 *   both quoted and bare JSON numbers.
 */
package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// TopicOrdersPaid is the only webhook topic that drives ledger mutations.
const TopicOrdersPaid = "orders/paid"

// ShopifyOrder is the subset of the Shopify order payload the ledger consumes.
type ShopifyOrder struct {
	ID         int64            `json:"id"`
	Email      string           `json:"email,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
	Customer   *ShopifyCustomer `json:"customer,omitempty"`
}

// ShopifyCustomer is the nested customer object of an order.
type ShopifyCustomer struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
}

// CustomerEmail returns the customer email, falling back to the order-level email.
func (o ShopifyOrder) CustomerEmail() string {
	if o.Customer != nil {
		if email := strings.TrimSpace(o.Customer.Email); email != "" {
			return email
		}
	}
	return strings.TrimSpace(o.Email)
}

// OrderKey returns the dedupe key for the order, or "" when the order has no id.
func (o ShopifyOrder) OrderKey() string {
	if o.ID <= 0 {
		return ""
	}
	return strconv.FormatInt(o.ID, 10)
}

// OrderPaid is the validated command handed to the ledger engine.
type OrderPaid struct {
	OrderID       string
	WebhookID     string
	Topic         string
	ShopDomain    string
	CustomerEmail string
	TotalPrice    decimal.Decimal
}
