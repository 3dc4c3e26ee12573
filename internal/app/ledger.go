/**
 * @description
 * Core ledger logic: turns one verified orders/paid delivery into exactly-once
 * increments of the company PV counter and, when the buyer is an affiliate, the
 * affiliate's personal PV, share units and activation flag.
 *
 * Key features:
 * - Idempotency: the processed-order record is inserted in the same transaction
 *   as the increments. A second delivery of the same order finds the record and
 *   rolls back without touching any counter.
 * - Atomic deltas: the service never reads a counter and writes back a total.
 * - Side-events are written to the outbox inside the transaction.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
)

var errDuplicateOrder = errors.New("order already applied")

// Service provides the ledger and eligibility operations.
type Service struct {
	repo     store.Repository
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new ledger service. exchange is the broker exchange that
// outbox events are addressed to.
func NewService(repo store.Repository, exchange string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
}

// ApplyOrderPaid applies one order-paid command. Redelivery of an already applied
// order returns a LedgerDuplicate result and no error.
func (s *Service) ApplyOrderPaid(ctx context.Context, order domain.OrderPaid) (*domain.LedgerResult, error) {
	if order.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	if order.TotalPrice.IsNegative() {
		return nil, fmt.Errorf("%w: negative total_price %s", ErrInvalidOrder, order.TotalPrice)
	}

	email := NormalizeEmail(order.CustomerEmail)
	topic := order.Topic
	if topic == "" {
		topic = domain.TopicOrdersPaid
	}

	var result *domain.LedgerResult
	err := s.repo.WithinLedgerTx(ctx, func(tx store.LedgerTx) error {
		// The closure may be re-run after a deadlock, so all state is rebuilt here.
		result = nil

		match, err := resolveAffiliate(ctx, tx, email)
		if err != nil {
			return err
		}

		record := domain.ProcessedOrder{
			OrderID:    order.OrderID,
			WebhookID:  order.WebhookID,
			ShopDomain: order.ShopDomain,
			Topic:      topic,
			TotalPrice: order.TotalPrice,
			Resolution: match.resolution,
		}
		if match.affiliate != nil {
			id := match.affiliate.ID
			record.AffiliateID = &id
		}

		reserved, err := tx.ReserveOrder(ctx, record)
		if err != nil {
			return err
		}
		if !reserved {
			return errDuplicateOrder
		}

		companyPV, err := tx.IncrementCompanyPV(ctx, order.TotalPrice)
		if err != nil {
			return err
		}

		applied := &domain.LedgerResult{
			Status:     domain.LedgerApplied,
			OrderID:    order.OrderID,
			Resolution: match.resolution,
			CompanyPV:  &companyPV,
		}

		if match.affiliate != nil {
			credit, err := tx.CreditAffiliatePV(ctx, match.affiliate.ID, order.TotalPrice)
			if err != nil {
				return err
			}
			if want := domain.ShareUnitsFor(credit.SelfPV); credit.ShareUnits != want {
				return fmt.Errorf("affiliate %s has %d share units for self_pv %s, want %d",
					credit.AffiliateID, credit.ShareUnits, credit.SelfPV, want)
			}
			applied.Affiliate = credit
		}

		if err := s.enqueueLedgerEvents(ctx, tx, order, match, applied); err != nil {
			return err
		}

		result = applied
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateOrder) {
			s.logger.Info("duplicate order delivery ignored", "order_id", order.OrderID, "webhook_id", order.WebhookID)
			return &domain.LedgerResult{Status: domain.LedgerDuplicate, OrderID: order.OrderID}, nil
		}
		return nil, fmt.Errorf("apply order %s: %w", order.OrderID, err)
	}

	attrs := []any{
		"order_id", order.OrderID,
		"webhook_id", order.WebhookID,
		"shop_domain", order.ShopDomain,
		"total_price", order.TotalPrice.String(),
		"resolution", string(result.Resolution),
		"company_pv", result.CompanyPV.String(),
	}
	if result.Affiliate != nil {
		attrs = append(attrs,
			"affiliate_id", result.Affiliate.AffiliateID.String(),
			"self_pv", result.Affiliate.SelfPV.String(),
			"share_units", result.Affiliate.ShareUnits,
		)
		if result.Affiliate.Activated {
			s.logger.Info("affiliate activated", "affiliate_id", result.Affiliate.AffiliateID.String(), "order_id", order.OrderID)
		}
	}
	if result.Resolution == domain.ResolutionAmbiguous {
		s.logger.Warn("customer email matches more than one affiliate; only company pv applied", "order_id", order.OrderID)
	}
	s.logger.Info("order applied to ledger", attrs...)

	return result, nil
}

func (s *Service) enqueueLedgerEvents(ctx context.Context, tx store.LedgerTx, order domain.OrderPaid, match affiliateMatch, applied *domain.LedgerResult) error {
	occurredAt := s.now().UTC()

	appliedEvent := domain.OrderAppliedEvent{
		EventID:    uuid.New(),
		OrderID:    order.OrderID,
		TotalPrice: order.TotalPrice,
		Resolution: match.resolution,
		OccurredAt: occurredAt,
	}
	if applied.Affiliate != nil {
		id := applied.Affiliate.AffiliateID
		appliedEvent.AffiliateID = &id
	}
	if err := tx.EnqueueEvent(ctx, s.exchange, domain.RoutingKeyOrderApplied, appliedEvent); err != nil {
		return err
	}

	if applied.Affiliate != nil && applied.Affiliate.Activated {
		activated := domain.AffiliateActivatedEvent{
			EventID:     uuid.New(),
			AffiliateID: applied.Affiliate.AffiliateID,
			OrderID:     order.OrderID,
			SelfPV:      applied.Affiliate.SelfPV,
			ShareUnits:  applied.Affiliate.ShareUnits,
			OccurredAt:  occurredAt,
		}
		if err := tx.EnqueueEvent(ctx, s.exchange, domain.RoutingKeyAffiliateActivated, activated); err != nil {
			return err
		}
	}

	if match.resolution == domain.ResolutionAmbiguous {
		ids := make([]uuid.UUID, 0, len(match.candidates))
		for _, candidate := range match.candidates {
			ids = append(ids, candidate.ID)
		}
		ambiguous := domain.AmbiguousAffiliateEvent{
			EventID:      uuid.New(),
			OrderID:      order.OrderID,
			Email:        NormalizeEmail(order.CustomerEmail),
			AffiliateIDs: ids,
			OccurredAt:   occurredAt,
		}
		if err := tx.EnqueueEvent(ctx, s.exchange, domain.RoutingKeyAmbiguousAffiliate, ambiguous); err != nil {
			return err
		}
	}
	return nil
}

// GetEligibility evaluates commission eligibility from stored facts. It performs no writes.
func (s *Service) GetEligibility(ctx context.Context, affiliateID uuid.UUID) (*domain.Eligibility, error) {
	facts, err := s.repo.GetEligibilityFacts(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	eligibility := domain.EvaluateEligibility(*facts)
	return &eligibility, nil
}
