// Package pricing implements the four-branch historical-price decision
// engine. Every price it proposes carries a justification, a confidence
// score and a validation flag; nothing is ever priced silently.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/model"
)

// Confidence levels per case, ordered by how directly the price is grounded
// in history.
const (
	confidenceStableRepeat   = 0.95
	confidenceUnstableRepeat = 0.85
	confidenceKnownElsewhere = 0.75
	confidenceThinReference  = 0.60
	confidenceNeverSold      = 0.40
)

// SalesHistory provides prior sales of a product. An empty clientID
// retrieves cross-client history.
type SalesHistory interface {
	SalesFor(ctx context.Context, clientID, productID string) ([]model.Sale, error)
}

// SupplierPriceHistory provides the supplier (cost) price history of a
// product.
type SupplierPriceHistory interface {
	PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error)
}

// Engine is the pricing decision engine. It is a pure function of its inputs
// plus the historical collaborators and performs no mutation; persisting the
// decision is the ledger's responsibility.
type Engine struct {
	sales  SalesHistory
	prices SupplierPriceHistory
	cfg    config.PricingConfig
	now    func() time.Time
}

// NewEngine creates a pricing engine over the given history providers.
func NewEngine(sales SalesHistory, prices SupplierPriceHistory, cfg config.PricingConfig) *Engine {
	return &Engine{sales: sales, prices: prices, cfg: cfg, now: time.Now}
}

// Input is one (client, product, quantity) line to price.
type Input struct {
	ClientID      string
	ProductID     string
	Quantity      int
	SupplierPrice decimal.Decimal
}

// Decide selects one of the four pricing branches and computes a price.
// An unreachable history collaborator fails closed with
// ErrHistoryUnavailable: no guessed decision is returned, since missing
// infrastructure and genuinely empty history need different remediation.
func (e *Engine) Decide(ctx context.Context, in Input) (*model.PricingDecision, error) {
	if in.ClientID == "" || in.ProductID == "" {
		return nil, fmt.Errorf("%w: client and product ids are required", common.ErrInvalidReference)
	}
	if in.SupplierPrice.IsNegative() || in.SupplierPrice.IsZero() {
		return nil, fmt.Errorf("supplier price must be positive, got %s", in.SupplierPrice)
	}

	clientSales, err := e.sales.SalesFor(ctx, in.ClientID, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: client sales for product %s: %v", common.ErrHistoryUnavailable, in.ProductID, err)
	}

	if len(clientSales) > 0 {
		return e.decideRepeat(ctx, in, latestSale(clientSales))
	}

	allSales, err := e.sales.SalesFor(ctx, "", in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: cross-client sales for product %s: %v", common.ErrHistoryUnavailable, in.ProductID, err)
	}

	references := excludeClient(allSales, in.ClientID)
	if len(references) > 0 {
		return e.decideKnownElsewhere(in, references)
	}

	return e.decideNeverSold(in)
}

// decideRepeat covers cases 1 and 2: the product was previously sold to this
// client. The supplier price variance since that sale decides whether the
// prior price is reused verbatim or recomputed.
func (e *Engine) decideRepeat(ctx context.Context, in Input, prior model.Sale) (*model.PricingDecision, error) {
	history, err := e.prices.PriceHistory(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: supplier price history for product %s: %v", common.ErrHistoryUnavailable, in.ProductID, err)
	}

	atSale := supplierPriceAt(history, prior.Date, in.SupplierPrice)
	variancePct := decimal.Zero
	if !atSale.IsZero() {
		variancePct = in.SupplierPrice.Sub(atSale).Abs().Div(atSale).Mul(decimal.NewFromInt(100))
	}
	threshold := decimal.NewFromFloat(e.cfg.StabilityThresholdPct)

	snapshot := e.snapshot(in)
	snapshot.PriorSalePrice = &prior.Price

	// Stable only strictly below the threshold: a variance of exactly the
	// threshold is already unstable.
	if variancePct.LessThan(threshold) {
		return &model.PricingDecision{
			ID:        uuid.NewString(),
			Case:      model.CaseStableRepeat,
			UnitPrice: prior.Price,
			Justification: fmt.Sprintf(
				"reusing price %s from prior sale to %s on %s; supplier price variance since then is %s%% (below %s%%)",
				prior.Price, in.ClientID, prior.Date.Format("2006-01-02"),
				variancePct.Round(2), threshold),
			Confidence:         confidenceStableRepeat,
			RequiresValidation: false,
			Input:              snapshot,
			CreatedAt:          e.now(),
		}, nil
	}

	margin := decimal.NewFromFloat(e.cfg.MarginPct)
	price := applyMargin(in.SupplierPrice, margin)
	delta := price.Sub(prior.Price)
	deltaPct := decimal.Zero
	if !prior.Price.IsZero() {
		deltaPct = delta.Div(prior.Price).Mul(decimal.NewFromInt(100))
	}

	var alerts []string
	if deltaPct.Abs().GreaterThanOrEqual(decimal.NewFromFloat(e.cfg.SignificantDeltaPct)) {
		alerts = append(alerts, fmt.Sprintf(
			"price moved %s%% against the last sale to this client", deltaPct.Round(2)))
	}

	return &model.PricingDecision{
		ID:            uuid.NewString(),
		Case:          model.CaseUnstableRepeat,
		UnitPrice:     price,
		MarginApplied: &margin,
		Justification: fmt.Sprintf(
			"supplier price variance %s%% since sale on %s is at or above %s%%; old price %s, new price %s, delta %s (%s%%)",
			variancePct.Round(2), prior.Date.Format("2006-01-02"), threshold,
			prior.Price, price, delta.Round(2), deltaPct.Round(2)),
		Confidence:         confidenceUnstableRepeat,
		RequiresValidation: true,
		Alerts:             alerts,
		Input:              snapshot,
		CreatedAt:          e.now(),
	}, nil
}

// decideKnownElsewhere covers case 3: never sold to this client but sold to
// others. The price is a weighted average of reference sales, weighting more
// recent and higher-quantity sales more heavily.
func (e *Engine) decideKnownElsewhere(in Input, references []model.Sale) (*model.PricingDecision, error) {
	now := e.now()
	weightSum := decimal.Zero
	weighted := decimal.Zero
	clients := make(map[string]bool, len(references))
	for _, s := range references {
		qty := s.Quantity
		if qty <= 0 {
			qty = 1
		}
		ageYears := now.Sub(s.Date).Hours() / (24 * 365)
		if ageYears < 0 {
			ageYears = 0
		}
		w := decimal.NewFromFloat(float64(qty) / (1 + ageYears))
		weighted = weighted.Add(s.Price.Mul(w))
		weightSum = weightSum.Add(w)
		clients[s.ClientID] = true
	}
	if weightSum.IsZero() {
		return e.decideNeverSold(in)
	}
	price := weighted.Div(weightSum).Round(2)

	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	requiresValidation := len(references) < e.cfg.MinReferenceSales
	confidence := confidenceKnownElsewhere
	if requiresValidation {
		confidence = confidenceThinReference
	}

	return &model.PricingDecision{
		ID:        uuid.NewString(),
		Case:      model.CaseKnownElsewhere,
		UnitPrice: price,
		Justification: fmt.Sprintf(
			"no prior sale to %s; weighted average of %d reference sales to clients [%s]",
			in.ClientID, len(references), strings.Join(ids, ", ")),
		Confidence:         confidence,
		RequiresValidation: requiresValidation,
		Input:              e.snapshot(in),
		CreatedAt:          now,
	}, nil
}

// decideNeverSold covers case 4: no sale history anywhere.
func (e *Engine) decideNeverSold(in Input) (*model.PricingDecision, error) {
	margin := decimal.NewFromFloat(e.cfg.MarginPct)
	price := applyMargin(in.SupplierPrice, margin)

	return &model.PricingDecision{
		ID:            uuid.NewString(),
		Case:          model.CaseNeverSold,
		UnitPrice:     price,
		MarginApplied: &margin,
		Justification: fmt.Sprintf(
			"no sale history exists for product %s; price is supplier price %s with %s%% margin",
			in.ProductID, in.SupplierPrice, margin),
		Confidence:         confidenceNeverSold,
		RequiresValidation: true,
		Alerts:             []string{"no sales history anywhere for this product"},
		Input:              e.snapshot(in),
		CreatedAt:          e.now(),
	}, nil
}

func (e *Engine) snapshot(in Input) model.PricingInput {
	return model.PricingInput{
		ClientID:      in.ClientID,
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		SupplierPrice: in.SupplierPrice,
	}
}

// applyMargin returns price * (1 + marginPct/100) rounded to cents.
func applyMargin(price, marginPct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return price.Mul(one.Add(marginPct.Div(hundred))).Round(2)
}

// latestSale returns the most recent sale.
func latestSale(sales []model.Sale) model.Sale {
	latest := sales[0]
	for _, s := range sales[1:] {
		if s.Date.After(latest.Date) {
			latest = s
		}
	}
	return latest
}

// supplierPriceAt returns the supplier price in effect at the given date:
// the most recent price point at or before it, the earliest known point if
// the history starts later, or the fallback when there is no history at all.
func supplierPriceAt(history []model.PricePoint, at time.Time, fallback decimal.Decimal) decimal.Decimal {
	if len(history) == 0 {
		return fallback
	}
	sorted := make([]model.PricePoint, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	price := sorted[0].Price
	for _, p := range sorted {
		if p.Date.After(at) {
			break
		}
		price = p.Price
	}
	return price
}

// excludeClient filters out sales made to the given client.
func excludeClient(sales []model.Sale, clientID string) []model.Sale {
	out := make([]model.Sale, 0, len(sales))
	for _, s := range sales {
		if s.ClientID != clientID {
			out = append(out, s)
		}
	}
	return out
}
