package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
)

// memoryRepository is an in-memory store.Repository. Ledger statements apply
// their deltas to shared state in place and take row locks that are held until
// the transaction ends, like Postgres under READ COMMITTED. A failed callback
// replays the undo log. Transactions only wait on each other where they touch
// the same row.
type memoryRepository struct {
	mu          sync.Mutex
	rowFree     *sync.Cond
	rowLocks    map[string]*memoryTx
	state       memoryState
	failOn      string
	unitSkew    int64
	txCount     int
	facts       map[uuid.UUID]domain.EligibilityFacts
	credentials *domain.ShopifyCredentials
}

type memoryAffiliate struct {
	id         uuid.UUID
	email      string
	selfPV     decimal.Decimal
	shareUnits int64
	isActive   bool
}

type memoryState struct {
	companyPV  decimal.Decimal
	affiliates map[uuid.UUID]memoryAffiliate
	processed  map[string]domain.ProcessedOrder
	outbox     []store.OutboxMessage
	nextOutbox int64
}

var errInjected = errors.New("injected failure")

func newMemoryRepository() *memoryRepository {
	r := &memoryRepository{
		rowLocks: map[string]*memoryTx{},
		state: memoryState{
			companyPV:  decimal.Zero,
			affiliates: map[uuid.UUID]memoryAffiliate{},
			processed:  map[string]domain.ProcessedOrder{},
		},
		facts: map[uuid.UUID]domain.EligibilityFacts{},
	}
	r.rowFree = sync.NewCond(&r.mu)
	return r
}

func (r *memoryRepository) addAffiliate(email string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.state.affiliates[id] = memoryAffiliate{id: id, email: email, selfPV: decimal.Zero}
	return id
}

func (r *memoryRepository) affiliate(id uuid.UUID) memoryAffiliate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.affiliates[id]
}

func (r *memoryRepository) companyPV() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.companyPV
}

func (r *memoryRepository) processedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.processed)
}

func (r *memoryRepository) processedOrder(orderID string) (domain.ProcessedOrder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.state.processed[orderID]
	return record, ok
}

func (r *memoryRepository) routingKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.state.outbox))
	for _, message := range r.state.outbox {
		keys = append(keys, message.RoutingKey)
	}
	return keys
}

func (r *memoryRepository) outboxPayload(routingKey string, out interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.state.outbox {
		if message.RoutingKey == routingKey {
			return json.Unmarshal(message.Payload, out) == nil
		}
	}
	return false
}

func (r *memoryRepository) WithinLedgerTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	r.mu.Lock()
	r.txCount++
	tx := &memoryTx{repo: r, failOn: r.failOn, unitSkew: r.unitSkew}
	r.mu.Unlock()

	err := fn(tx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	} else {
		for _, message := range tx.pending {
			r.state.nextOutbox++
			message.ID = r.state.nextOutbox
			r.state.outbox = append(r.state.outbox, message)
		}
	}
	for _, key := range tx.held {
		delete(r.rowLocks, key)
	}
	r.rowFree.Broadcast()
	return err
}

func (r *memoryRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.state.outbox) {
		limit = len(r.state.outbox)
	}
	return append([]store.OutboxMessage(nil), r.state.outbox[:limit]...), nil
}

func (r *memoryRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, message := range r.state.outbox {
		if message.ID == id {
			r.state.outbox = append(r.state.outbox[:i], r.state.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memoryRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	return nil
}

func (r *memoryRepository) GetEligibilityFacts(ctx context.Context, affiliateID uuid.UUID) (*domain.EligibilityFacts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	facts, ok := r.facts[affiliateID]
	if !ok {
		return nil, store.ErrAffiliateNotFound
	}
	return &facts, nil
}

func (r *memoryRepository) GetShopifyCredentials(ctx context.Context) (*domain.ShopifyCredentials, error) {
	if r.credentials == nil {
		return nil, store.ErrCredentialsNotFound
	}
	creds := *r.credentials
	return &creds, nil
}

func (r *memoryRepository) PruneProcessedOrders(ctx context.Context, appliedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, record := range r.state.processed {
		if record.AppliedAt.Before(appliedBefore) {
			delete(r.state.processed, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryTx struct {
	repo     *memoryRepository
	failOn   string
	unitSkew int64
	held     []string
	undo     []func()
	pending  []store.OutboxMessage
}

func (t *memoryTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

// lockRow blocks until no other transaction holds key. Callers hold repo.mu.
func (t *memoryTx) lockRow(key string) {
	for {
		owner, taken := t.repo.rowLocks[key]
		if !taken {
			t.repo.rowLocks[key] = t
			t.held = append(t.held, key)
			return
		}
		if owner == t {
			return
		}
		t.repo.rowFree.Wait()
	}
}

func (t *memoryTx) FindAffiliatesByEmail(ctx context.Context, email string, limit int) ([]domain.AffiliateRef, error) {
	if err := t.fail("FindAffiliatesByEmail"); err != nil {
		return nil, err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var refs []domain.AffiliateRef
	for _, a := range t.repo.state.affiliates {
		if NormalizeEmail(a.email) == NormalizeEmail(email) {
			refs = append(refs, domain.AffiliateRef{ID: a.id, Email: a.email})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		return bytes.Compare(refs[i].ID[:], refs[j].ID[:]) < 0
	})
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (t *memoryTx) ReserveOrder(ctx context.Context, record domain.ProcessedOrder) (bool, error) {
	if err := t.fail("ReserveOrder"); err != nil {
		return false, err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.lockRow("order:" + record.OrderID)

	state := &t.repo.state
	if _, exists := state.processed[record.OrderID]; exists {
		return false, nil
	}
	if record.AppliedAt.IsZero() {
		record.AppliedAt = time.Now().UTC()
	}
	state.processed[record.OrderID] = record
	t.undo = append(t.undo, func() { delete(state.processed, record.OrderID) })
	return true, nil
}

func (t *memoryTx) IncrementCompanyPV(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := t.fail("IncrementCompanyPV"); err != nil {
		return decimal.Zero, err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.lockRow("company")

	state := &t.repo.state
	before := state.companyPV
	state.companyPV = state.companyPV.Add(amount)
	t.undo = append(t.undo, func() { state.companyPV = before })
	return state.companyPV, nil
}

func (t *memoryTx) CreditAffiliatePV(ctx context.Context, affiliateID uuid.UUID, amount decimal.Decimal) (*domain.AffiliateCredit, error) {
	if err := t.fail("CreditAffiliatePV"); err != nil {
		return nil, err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.lockRow("affiliate:" + affiliateID.String())

	state := &t.repo.state
	before, ok := state.affiliates[affiliateID]
	if !ok {
		return nil, store.ErrAffiliateNotFound
	}
	a := before
	a.selfPV = a.selfPV.Add(amount)
	a.shareUnits = a.selfPV.Div(domain.ShareUnitPV).Floor().IntPart() + t.unitSkew
	a.isActive = a.isActive || a.selfPV.GreaterThanOrEqual(domain.ActivationThresholdPV)
	state.affiliates[affiliateID] = a
	t.undo = append(t.undo, func() { state.affiliates[affiliateID] = before })

	return &domain.AffiliateCredit{
		AffiliateID: a.id,
		SelfPV:      a.selfPV,
		ShareUnits:  a.shareUnits,
		IsActive:    a.isActive,
		Activated:   a.isActive && !before.isActive,
	}, nil
}

func (t *memoryTx) EnqueueEvent(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	if err := t.fail("EnqueueEvent"); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.pending = append(t.pending, store.OutboxMessage{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Payload:    body,
	})
	return nil
}
