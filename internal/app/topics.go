package app

import (
	"strings"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

// TopicAction is what the webhook endpoint does with a delivery of a given topic.
type TopicAction int

const (
	// TopicIgnore acknowledges the delivery without touching the ledger.
	TopicIgnore TopicAction = iota
	// TopicApplyLedger routes the delivery to the ledger engine.
	TopicApplyLedger
)

func (a TopicAction) String() string {
	if a == TopicApplyLedger {
		return "apply_ledger"
	}
	return "ignore"
}

// RouteTopic dispatches on the webhook topic header. Shopify sends many unrelated
// topics to the same endpoint, so anything other than orders/paid is a normal no-op.
func RouteTopic(topic string) TopicAction {
	if strings.TrimSpace(topic) == domain.TopicOrdersPaid {
		return TopicApplyLedger
	}
	return TopicIgnore
}
