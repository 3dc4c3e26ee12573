package domain

import (
	"strings"

	"github.com/google/uuid"
)

// SalesTarget is the number of successful sales required for commission eligibility.
const SalesTarget = 4

// KYCStatusApproved is the only verification state that counts toward eligibility.
const KYCStatusApproved = "approved"

// EligibilityFacts are the stored inputs written by collaborators outside the ledger.
type EligibilityFacts struct {
	AffiliateID     uuid.UUID
	KYCStatus       string
	SuccessfulSales int
	FeePaid         bool
}

// Eligibility is the derived, read-only commission eligibility view.
type Eligibility struct {
	AffiliateID     uuid.UUID `json:"affiliate_id"`
	KYCApproved     bool      `json:"kyc_approved"`
	SuccessfulSales int       `json:"successful_sales"`
	SalesTarget     int       `json:"sales_target"`
	FeePaid         bool      `json:"fee_paid"`
	Eligible        bool      `json:"eligible"`
}

// EvaluateEligibility combines the stored facts. It never mutates them.
func EvaluateEligibility(f EligibilityFacts) Eligibility {
	kycApproved := strings.EqualFold(strings.TrimSpace(f.KYCStatus), KYCStatusApproved)
	return Eligibility{
		AffiliateID:     f.AffiliateID,
		KYCApproved:     kycApproved,
		SuccessfulSales: f.SuccessfulSales,
		SalesTarget:     SalesTarget,
		FeePaid:         f.FeePaid,
		Eligible:        kycApproved && f.SuccessfulSales >= SalesTarget && f.FeePaid,
	}
}
