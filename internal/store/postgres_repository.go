/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * Every counter mutation is expressed as an in-place delta (`pv = pv + $n`) so that
 * concurrent deliveries never race on a value read into the application.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC values travel as text and are parsed here.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

var (
	ErrAffiliateNotFound   = errors.New("affiliate not found")
	ErrCredentialsNotFound = errors.New("shopify credentials not found")
)

const (
	shopifyCredentialsID = "shopify"
	maxLedgerTxAttempts  = 3
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithinLedgerTx runs fn in a READ COMMITTED transaction. Deadlocks and serialization
// failures are retried from scratch; fn must therefore be safe to re-run.
func (r *PostgresRepository) WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	var err error
	for attempt := 1; attempt <= maxLedgerTxAttempts; attempt++ {
		err = r.runLedgerTx(ctx, fn)
		if err == nil || !isRetryableTxError(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *PostgresRepository) runLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

// FindAffiliatesByEmail matches on the normalized email. The unique index on
// lower(btrim(email)) makes more than one row a data anomaly, which callers must handle.
func (t *pgLedgerTx) FindAffiliatesByEmail(ctx context.Context, email string, limit int) ([]domain.AffiliateRef, error) {
	if limit <= 0 {
		limit = 2
	}
	query := `
		SELECT id, email
		FROM affiliates
		WHERE lower(btrim(email)) = lower(btrim($1))
		ORDER BY id
		LIMIT $2
	`
	rows, err := t.tx.Query(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("find affiliates by email: %w", err)
	}
	defer rows.Close()

	refs := make([]domain.AffiliateRef, 0, limit)
	for rows.Next() {
		var ref domain.AffiliateRef
		if err := rows.Scan(&ref.ID, &ref.Email); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ReserveOrder inserts the processed-order record. A concurrent insert of the same
// order id blocks on the primary key until the other transaction finishes.
func (t *pgLedgerTx) ReserveOrder(ctx context.Context, record domain.ProcessedOrder) (bool, error) {
	query := `
		INSERT INTO processed_orders (
			order_id, webhook_id, shop_domain, topic, total_price, affiliate_id, resolution, applied_at
		)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5::numeric, $6, $7, NOW())
		ON CONFLICT (order_id) DO NOTHING
	`
	result, err := t.tx.Exec(ctx, query,
		record.OrderID,
		record.WebhookID,
		record.ShopDomain,
		record.Topic,
		record.TotalPrice.String(),
		record.AffiliateID,
		string(record.Resolution),
	)
	if err != nil {
		return false, fmt.Errorf("reserve processed order: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// IncrementCompanyPV applies an upsert increment to the singleton counter row.
func (t *pgLedgerTx) IncrementCompanyPV(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		INSERT INTO company_monthly_counters (id, pv, updated_at)
		VALUES ($1, $2::numeric, NOW())
		ON CONFLICT (id) DO UPDATE
		SET pv = company_monthly_counters.pv + EXCLUDED.pv,
			updated_at = NOW()
		RETURNING pv::text
	`
	var total string
	if err := t.tx.QueryRow(ctx, query, domain.CompanyCounterID, amount.String()).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("increment company pv: %w", err)
	}
	return parseNumeric(total)
}

// CreditAffiliatePV increments self_pv and, in the same statement, recomputes
// share_units from the post-increment value and applies the one-way activation.
func (t *pgLedgerTx) CreditAffiliatePV(ctx context.Context, affiliateID uuid.UUID, amount decimal.Decimal) (*domain.AffiliateCredit, error) {
	query := `
		WITH prev AS (
			SELECT id, is_active
			FROM affiliates
			WHERE id = $1
			FOR UPDATE
		)
		UPDATE affiliates AS a
		SET self_pv = a.self_pv + $2::numeric,
			share_units = floor((a.self_pv + $2::numeric) / $3::numeric)::int,
			is_active = a.is_active OR (a.self_pv + $2::numeric) >= $4::numeric,
			activated_at = CASE
				WHEN NOT a.is_active AND (a.self_pv + $2::numeric) >= $4::numeric THEN NOW()
				ELSE a.activated_at
			END,
			updated_at = NOW()
		FROM prev
		WHERE a.id = prev.id
		RETURNING a.self_pv::text, a.share_units, a.is_active, prev.is_active
	`
	var (
		selfPV    string
		credit    domain.AffiliateCredit
		wasActive bool
	)
	err := t.tx.QueryRow(ctx, query,
		affiliateID,
		amount.String(),
		domain.ShareUnitPV.String(),
		domain.ActivationThresholdPV.String(),
	).Scan(&selfPV, &credit.ShareUnits, &credit.IsActive, &wasActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("credit affiliate pv: %w", err)
	}

	credit.AffiliateID = affiliateID
	credit.SelfPV, err = parseNumeric(selfPV)
	if err != nil {
		return nil, err
	}
	credit.Activated = credit.IsActive && !wasActive
	return &credit, nil
}

// EnqueueEvent writes an outbox row inside the ledger transaction.
func (t *pgLedgerTx) EnqueueEvent(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	return enqueueEventTx(ctx, t.tx, exchange, routingKey, payload)
}

// GetEligibilityFacts loads the collaborator-owned facts used by the eligibility evaluator.
func (r *PostgresRepository) GetEligibilityFacts(ctx context.Context, affiliateID uuid.UUID) (*domain.EligibilityFacts, error) {
	query := `
		SELECT a.id, COALESCE(k.status, ''), a.successful_sales, a.fee_paid
		FROM affiliates a
		LEFT JOIN kyc_records k ON k.affiliate_id = a.id
		WHERE a.id = $1
	`
	var facts domain.EligibilityFacts
	err := r.db.QueryRow(ctx, query, affiliateID).Scan(
		&facts.AffiliateID,
		&facts.KYCStatus,
		&facts.SuccessfulSales,
		&facts.FeePaid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	return &facts, nil
}

// GetShopifyCredentials returns the stored Admin API credentials.
func (r *PostgresRepository) GetShopifyCredentials(ctx context.Context) (*domain.ShopifyCredentials, error) {
	var creds domain.ShopifyCredentials
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(store_url, ''), COALESCE(access_token, '') FROM shopify_credentials WHERE id = $1`,
		shopifyCredentialsID,
	).Scan(&creds.StoreURL, &creds.AccessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTableError(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}
	creds.StoreURL = strings.TrimSpace(creds.StoreURL)
	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	return &creds, nil
}

// PruneProcessedOrders deletes idempotency records older than the retention cutoff.
func (r *PostgresRepository) PruneProcessedOrders(ctx context.Context, appliedBefore time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM processed_orders WHERE applied_at < $1`, appliedBefore)
	if err != nil {
		return 0, fmt.Errorf("prune processed orders: %w", err)
	}
	return result.RowsAffected(), nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return value, nil
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func isUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
