package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nanisveeha-crypto/svntex-app/internal/domain"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Buyer@Example.COM\t"); got != "buyer@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestClassifyCandidates(t *testing.T) {
	one := domain.AffiliateRef{ID: uuid.New(), Email: "a@x.com"}
	two := domain.AffiliateRef{ID: uuid.New(), Email: "A@x.com"}

	tests := []struct {
		name       string
		candidates []domain.AffiliateRef
		want       domain.Resolution
		credited   bool
	}{
		{name: "none", candidates: nil, want: domain.ResolutionNoMatch},
		{name: "single", candidates: []domain.AffiliateRef{one}, want: domain.ResolutionMatched, credited: true},
		{name: "duplicate email", candidates: []domain.AffiliateRef{one, two}, want: domain.ResolutionAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := classifyCandidates(tt.candidates)
			if match.resolution != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, match.resolution)
			}
			if (match.affiliate != nil) != tt.credited {
				t.Fatalf("expected credited=%v, got affiliate %+v", tt.credited, match.affiliate)
			}
		})
	}
}

func TestResolveAffiliate_NoEmailSkipsLookup(t *testing.T) {
	tx := &memoryTx{repo: newMemoryRepository(), failOn: "FindAffiliatesByEmail"}

	match, err := resolveAffiliate(context.Background(), tx, "")
	if err != nil {
		t.Fatalf("expected no lookup for empty email, got %v", err)
	}
	if match.resolution != domain.ResolutionNoEmail {
		t.Fatalf("expected no_email, got %s", match.resolution)
	}
}
