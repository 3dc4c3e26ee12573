package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
)

// ErrCredentialsIncomplete means a credentials row exists but lacks the store URL or token.
var ErrCredentialsIncomplete = errors.New("incomplete shopify credentials")

const productCacheKeyPrefix = "svntex:shopify:products:"

// CredentialsSource loads stored Shopify credentials.
type CredentialsSource interface {
	GetShopifyCredentials(ctx context.Context) (*domain.ShopifyCredentials, error)
}

// ProductLister fetches the raw product listing from Shopify.
type ProductLister interface {
	ListProducts(ctx context.Context, storeURL, accessToken string) (json.RawMessage, error)
}

// ProductCache stores product listings for a short time.
type ProductCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Catalog serves the read-only product listing.
type Catalog struct {
	creds    CredentialsSource
	lister   ProductLister
	cache    ProductCache
	fallback domain.ShopifyCredentials
	ttl      time.Duration
	logger   *slog.Logger
}

// NewCatalog creates a Catalog. cache may be nil; fallback is used when no
// credentials row exists in the database.
func NewCatalog(creds CredentialsSource, lister ProductLister, cache ProductCache, fallback domain.ShopifyCredentials, ttl time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		creds:    creds,
		lister:   lister,
		cache:    cache,
		fallback: fallback,
		ttl:      ttl,
		logger:   logger,
	}
}

// ListProducts returns the Shopify product listing document.
func (c *Catalog) ListProducts(ctx context.Context) (json.RawMessage, error) {
	creds, err := c.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	key := productCacheKeyPrefix + creds.StoreURL
	if c.cache != nil && c.ttl > 0 {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("product cache read failed", "error", err)
		} else if ok {
			return json.RawMessage(cached), nil
		}
	}

	products, err := c.lister.ListProducts(ctx, creds.StoreURL, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.ttl > 0 {
		if err := c.cache.Set(ctx, key, products, c.ttl); err != nil {
			c.logger.Warn("product cache write failed", "error", err)
		}
	}
	return products, nil
}

func (c *Catalog) resolveCredentials(ctx context.Context) (*domain.ShopifyCredentials, error) {
	creds, err := c.creds.GetShopifyCredentials(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCredentialsNotFound) && c.fallback.Complete() {
			fallback := c.fallback
			return &fallback, nil
		}
		return nil, err
	}
	if !creds.Complete() {
		return nil, ErrCredentialsIncomplete
	}
	return creds, nil
}
