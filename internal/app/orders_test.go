package app

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

func TestDecodeOrderPaid(t *testing.T) {
	meta := DeliveryMeta{WebhookID: " b54557e4 ", Topic: "orders/paid", ShopDomain: "svntex.myshopify.com"}

	order, err := DecodeOrderPaid([]byte(`{
		"id": 820982911946154508,
		"email": "order-level@example.com",
		"total_price": "500.00",
		"currency": "INR",
		"customer": {"id": 115310627314723954, "email": "Buyer@Example.com"}
	}`), meta)
	if err != nil {
		t.Fatalf("DecodeOrderPaid returned error: %v", err)
	}
	if order.OrderID != "820982911946154508" {
		t.Fatalf("unexpected order id %q", order.OrderID)
	}
	if order.CustomerEmail != "Buyer@Example.com" {
		t.Fatalf("expected customer email to win, got %q", order.CustomerEmail)
	}
	if !order.TotalPrice.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("unexpected total price %s", order.TotalPrice)
	}
	if order.WebhookID != "b54557e4" || order.Topic != domain.TopicOrdersPaid {
		t.Fatalf("unexpected delivery meta %+v", order)
	}
}

func TestDecodeOrderPaid_RoundsToCents(t *testing.T) {
	order, err := DecodeOrderPaid([]byte(`{"id": 1, "total_price": 19.999}`), DeliveryMeta{})
	if err != nil {
		t.Fatalf("DecodeOrderPaid returned error: %v", err)
	}
	if order.TotalPrice.String() != "20" {
		t.Fatalf("expected rounding to 20, got %s", order.TotalPrice)
	}
}

func TestDecodeOrderPaid_RejectsUnusablePayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `not-json`},
		{name: "missing id", body: `{"total_price": "10.00"}`},
		{name: "zero id", body: `{"id": 0, "total_price": "10.00"}`},
		{name: "missing price", body: `{"id": 7}`},
		{name: "negative price", body: `{"id": 7, "total_price": "-1.00"}`},
		{name: "unparseable price", body: `{"id": 7, "total_price": "ten"}`},
		{name: "price in exponent form beyond range", body: `{"id": 7, "total_price": "1e25"}`},
		{name: "price with too many integer digits", body: `{"id": 7, "total_price": "123456789012345678901.00"}`},
		{name: "price rounding up to the limit", body: `{"id": 7, "total_price": "999999999999999999.995"}`},
		{name: "nul byte in customer email", body: `{"id": 7, "total_price": "1.00", "customer": {"email": "a\u0000b@x.com"}}`},
		{name: "nul byte in order email", body: `{"id": 7, "total_price": "1.00", "email": "a\u0000b@x.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOrderPaid([]byte(tt.body), DeliveryMeta{})
			if !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}
}

func TestDecodeOrderPaid_AcceptsLargestStorablePrice(t *testing.T) {
	order, err := DecodeOrderPaid([]byte(`{"id": 7, "total_price": "999999999999999999.99"}`), DeliveryMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.TotalPrice.String() != "999999999999999999.99" {
		t.Fatalf("expected price to be kept, got %s", order.TotalPrice)
	}
}

func TestRouteTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  TopicAction
	}{
		{topic: "orders/paid", want: TopicApplyLedger},
		{topic: " orders/paid ", want: TopicApplyLedger},
		{topic: "orders/create", want: TopicIgnore},
		{topic: "ORDERS/PAID", want: TopicIgnore},
		{topic: "", want: TopicIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := RouteTopic(tt.topic); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
