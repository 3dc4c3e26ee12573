package app

import (
	"context"
	"strings"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
)

// affiliateLookupLimit is 2 so that a duplicated email is detected instead of
// silently resolving to whichever row the database returns first.
const affiliateLookupLimit = 2

// NormalizeEmail is the canonical form used for affiliate lookups. Accounts are
// matched case-insensitively and without surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// affiliateMatch is the outcome of resolving an order's customer email.
type affiliateMatch struct {
	resolution domain.Resolution
	affiliate  *domain.AffiliateRef
	candidates []domain.AffiliateRef
}

// classifyCandidates turns lookup rows into a deterministic resolution.
func classifyCandidates(candidates []domain.AffiliateRef) affiliateMatch {
	switch len(candidates) {
	case 0:
		return affiliateMatch{resolution: domain.ResolutionNoMatch}
	case 1:
		ref := candidates[0]
		return affiliateMatch{resolution: domain.ResolutionMatched, affiliate: &ref, candidates: candidates}
	default:
		return affiliateMatch{resolution: domain.ResolutionAmbiguous, candidates: candidates}
	}
}

func resolveAffiliate(ctx context.Context, tx store.LedgerTx, email string) (affiliateMatch, error) {
	if email == "" {
		return affiliateMatch{resolution: domain.ResolutionNoEmail}, nil
	}
	candidates, err := tx.FindAffiliatesByEmail(ctx, email, affiliateLookupLimit)
	if err != nil {
		return affiliateMatch{}, err
	}
	return classifyCandidates(candidates), nil
}
