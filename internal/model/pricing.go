package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricingCase identifies which branch of the decision tree produced a price.
type PricingCase string

// The four mutually exclusive pricing branches.
const (
	CaseStableRepeat   PricingCase = "STABLE_REPEAT"
	CaseUnstableRepeat PricingCase = "UNSTABLE_REPEAT"
	CaseKnownElsewhere PricingCase = "KNOWN_ELSEWHERE"
	CaseNeverSold      PricingCase = "NEVER_SOLD"
)

// Sale is one historical sale line for a product.
type Sale struct {
	Date     time.Time
	Price    decimal.Decimal
	Quantity int
	ClientID string
}

// PricePoint is one entry in a product's supplier price history.
type PricePoint struct {
	Date  time.Time
	Price decimal.Decimal
}

// PricingInput is the snapshot of everything a decision was computed from.
type PricingInput struct {
	ClientID       string
	ProductID      string
	Quantity       int
	SupplierPrice  decimal.Decimal
	PriorSalePrice *decimal.Decimal
}

// PricingDecision is the immutable result of one pricing evaluation. A
// correction never rewrites a decision; it creates a new one pointing at the
// superseded id.
type PricingDecision struct {
	ID                 string
	RequestID          string
	Case               PricingCase
	UnitPrice          decimal.Decimal
	MarginApplied      *decimal.Decimal
	Justification      string
	Confidence         float64
	RequiresValidation bool
	Alerts             []string
	Input              PricingInput
	CreatedAt          time.Time
	Supersedes         string
}

// Validate ensures the decision carries legal values before persistence.
func (d *PricingDecision) Validate() error {
	switch d.Case {
	case CaseStableRepeat, CaseUnstableRepeat, CaseKnownElsewhere, CaseNeverSold:
	default:
		return fmt.Errorf("unknown pricing case %q", d.Case)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.2f", d.Confidence)
	}
	if d.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price must not be negative, got %s", d.UnitPrice)
	}
	if d.Justification == "" {
		return fmt.Errorf("justification is required")
	}
	return nil
}
