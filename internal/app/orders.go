package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

// ErrInvalidOrder marks an authentic order-paid payload the ledger cannot apply.
// Callers acknowledge it as a handled skip; redelivery would not fix it.
var ErrInvalidOrder = errors.New("invalid order payload")

// pvScale matches the NUMERIC(20,2) columns that store PV.
const pvScale = 2

// maxOrderPrice is the first value NUMERIC(20,2) cannot hold.
var maxOrderPrice = decimal.New(1, 18)

// DeliveryMeta carries the webhook headers that accompany a payload.
type DeliveryMeta struct {
	WebhookID  string
	Topic      string
	ShopDomain string
}

// DecodeOrderPaid parses an already-verified orders/paid body into a ledger command.
func DecodeOrderPaid(body []byte, meta DeliveryMeta) (domain.OrderPaid, error) {
	var order domain.ShopifyOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return domain.OrderPaid{}, fmt.Errorf("%w: decode: %v", ErrInvalidOrder, err)
	}

	orderID := order.OrderKey()
	if orderID == "" {
		return domain.OrderPaid{}, fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	if order.TotalPrice == nil {
		return domain.OrderPaid{}, fmt.Errorf("%w: order %s has no total_price", ErrInvalidOrder, orderID)
	}
	if order.TotalPrice.IsNegative() {
		return domain.OrderPaid{}, fmt.Errorf("%w: order %s has negative total_price %s", ErrInvalidOrder, orderID, order.TotalPrice)
	}
	price := order.TotalPrice.Round(pvScale)
	if price.GreaterThanOrEqual(maxOrderPrice) {
		return domain.OrderPaid{}, fmt.Errorf("%w: order %s total_price %s exceeds the ledger range", ErrInvalidOrder, orderID, order.TotalPrice)
	}

	// Postgres text parameters cannot carry NUL.
	email := order.CustomerEmail()
	if strings.ContainsRune(email, 0) {
		return domain.OrderPaid{}, fmt.Errorf("%w: order %s customer email contains a NUL byte", ErrInvalidOrder, orderID)
	}

	return domain.OrderPaid{
		OrderID:       orderID,
		WebhookID:     strings.TrimSpace(meta.WebhookID),
		Topic:         strings.TrimSpace(meta.Topic),
		ShopDomain:    strings.TrimSpace(meta.ShopDomain),
		CustomerEmail: email,
		TotalPrice:    price,
	}, nil
}
