// Package engine orchestrates the request pipeline: candidate extraction,
// client and product matching, duplicate detection and pricing, ending in a
// single all-or-nothing ledger write.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/dedup"
	"github.com/celikd/orderdesk/internal/directory"
	"github.com/celikd/orderdesk/internal/extract"
	"github.com/celikd/orderdesk/internal/match"
	"github.com/celikd/orderdesk/internal/model"
	"github.com/celikd/orderdesk/internal/pricing"
)

// minAcceptScore is the score floor below which a ranked product match is
// not pulled into the order proposal.
const minAcceptScore = 70.0

// Ledger is the persistence boundary of the pipeline. Writes happen only
// after a proposal is fully computed.
type Ledger interface {
	RecordProposal(ctx context.Context, record *model.ProcessedRequest, check model.DuplicateCheck, decisions []model.PricingDecision) (bool, error)
	RecordDuplicateCheck(ctx context.Context, hash string, check model.DuplicateCheck) error
	ListDecisionsForRequest(ctx context.Context, requestID string) ([]model.PricingDecision, error)
	SupersedeRequest(ctx context.Context, id, supersededBy string) error
}

// InboundRequest is one parsed inbound message with its extracted candidate
// tokens. Extraction of the candidates themselves (LLM or otherwise) happens
// upstream of this core.
type InboundRequest struct {
	Sender            string
	Subject           string
	Body              string
	ClientCandidates  []string
	ProductCandidates []string
	// Quantities maps a product candidate token (or catalog code) to the
	// requested quantity; unlisted products default to 1.
	Quantities map[string]int
	ReceivedAt time.Time
}

// Proposal is the terminal outcome of processing one inbound request. Every
// pipeline branch produces a proposal; only infrastructure failures surface
// as errors.
type Proposal struct {
	RequestID      string
	Status         model.RequestStatus
	ReviewReason   string
	ClientMatches  model.MatchResults
	ProductMatches model.MatchResults
	Duplicate      model.DuplicateCheck
	Decisions      []model.PricingDecision
	PriorDecisions []model.PricingDecision
}

// Processor wires the pipeline components together.
type Processor struct {
	extractor *extract.Extractor
	clients   *directory.ClientCache
	products  *directory.ProductCache
	clientM   *match.ClientMatcher
	productM  *match.ProductMatcher
	detector  *dedup.Detector
	pricer    *pricing.Engine
	prices    pricing.SupplierPriceHistory
	ledger    Ledger
}

// NewProcessor creates a request processor.
func NewProcessor(
	extractor *extract.Extractor,
	clients *directory.ClientCache,
	products *directory.ProductCache,
	clientM *match.ClientMatcher,
	productM *match.ProductMatcher,
	detector *dedup.Detector,
	pricer *pricing.Engine,
	prices pricing.SupplierPriceHistory,
	ledger Ledger,
) *Processor {
	return &Processor{
		extractor: extractor,
		clients:   clients,
		products:  products,
		clientM:   clientM,
		productM:  productM,
		detector:  detector,
		pricer:    pricer,
		prices:    prices,
		ledger:    ledger,
	}
}

// Process runs the full pipeline for one inbound request.
func (p *Processor) Process(ctx context.Context, req InboundRequest) (*Proposal, error) {
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	clients, err := p.clients.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: client directory: %v", common.ErrHistoryUnavailable, err)
	}
	products, err := p.products.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: product catalog: %v", common.ErrHistoryUnavailable, err)
	}

	clientTokens := p.extractor.Filter(req.ClientCandidates)
	productTokens := p.extractor.Filter(req.ProductCandidates)

	clientInput := match.MessageInput{
		SenderEmail: req.Sender,
		Subject:     req.Subject,
		Body:        req.Body,
		Candidates:  clientTokens,
	}
	clientMatches, err := p.clientM.Match(clientInput, clients)
	if err != nil {
		// Ambiguity is a terminal outcome for a human, not a failure.
		ids := clientMatches.EntityIDs()
		if len(ids) > 2 {
			ids = ids[:2]
		}
		return &Proposal{
			Status:        model.RequestNeedsReview,
			ReviewReason:  "client match is ambiguous between " + strings.Join(ids, " and "),
			ClientMatches: clientMatches,
		}, nil
	}
	top := clientMatches.Top()
	if top == nil {
		return &Proposal{
			Status:       model.RequestNeedsReview,
			ReviewReason: "no client resolved from sender or text",
		}, nil
	}

	productInput := match.MessageInput{
		SenderEmail: req.Sender,
		Subject:     req.Subject,
		Body:        req.Body,
		Candidates:  productTokens,
	}
	productMatches := p.productM.Match(productInput, products)
	lines := acceptedLines(productMatches, req.Quantities)
	if len(lines) == 0 {
		return &Proposal{
			Status:        model.RequestNeedsReview,
			ReviewReason:  "no product resolved above the acceptance score",
			ClientMatches: clientMatches,
		}, nil
	}

	productIDs := make([]string, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.productID)
	}

	check, err := p.detector.Check(ctx, dedup.Incoming{
		Sender:     req.Sender,
		ClientID:   top.EntityID,
		ProductIDs: productIDs,
		Subject:    req.Subject,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		return nil, err
	}

	fp := model.NewFingerprint(req.Sender, top.EntityID, productIDs, req.ReceivedAt)
	if check.ShortCircuits() {
		return p.strictProposal(ctx, fp.Hash(), check, clientMatches, productMatches)
	}

	decisions, err := p.priceLines(ctx, top.EntityID, lines)
	if err != nil {
		return nil, err
	}

	record := &model.ProcessedRequest{
		ID:            uuid.NewString(),
		Fingerprint:   fp,
		Hash:          fp.Hash(),
		Subject:       req.Subject,
		FirstSeen:     req.ReceivedAt,
		Status:        model.RequestProcessed,
		DuplicateFlag: check.Type,
	}
	record.OutcomeRef = record.ID
	for i := range decisions {
		decisions[i].RequestID = record.ID
	}

	inserted, err := p.ledger.RecordProposal(ctx, record, check, decisions)
	if err != nil {
		return nil, err
	}
	for !inserted {
		strict, expired, err := p.detector.Reclassify(ctx, fp, req.ReceivedAt)
		if err != nil {
			return nil, err
		}
		if expired == nil {
			// A concurrent identical request won the insert race; our
			// freshly computed decisions are discarded and the winner's
			// outcome stands.
			return p.strictProposal(ctx, fp.Hash(), strict, clientMatches, productMatches)
		}
		// The fingerprint is held by a record older than the lookback
		// window. Retire it and record the fresh outcome; if another writer
		// slips in between, the next pass resolves against that winner.
		if err := p.ledger.SupersedeRequest(ctx, expired.ID, record.ID); err != nil {
			return nil, err
		}
		inserted, err = p.ledger.RecordProposal(ctx, record, check, decisions)
		if err != nil {
			return nil, err
		}
	}

	common.LogInfo("Request processed", common.Fields{
		"request_id": record.ID,
		"client_id":  top.EntityID,
		"products":   len(lines),
		"duplicate":  string(check.Type),
	})

	return &Proposal{
		RequestID:      record.ID,
		Status:         model.RequestProcessed,
		ClientMatches:  clientMatches,
		ProductMatches: productMatches,
		Duplicate:      check,
		Decisions:      decisions,
	}, nil
}

// strictProposal records the duplicate check for audit and returns the prior
// outcome without computing new pricing decisions.
func (p *Processor) strictProposal(ctx context.Context, hash string, check model.DuplicateCheck, clientMatches, productMatches model.MatchResults) (*Proposal, error) {
	if err := p.ledger.RecordDuplicateCheck(ctx, hash, check); err != nil {
		return nil, err
	}
	prior, err := p.ledger.ListDecisionsForRequest(ctx, check.PriorRequestID)
	if err != nil {
		return nil, err
	}

	common.LogInfo("Strict duplicate short-circuited", common.Fields{
		"prior_request_id": check.PriorRequestID,
		"prior_outcome":    check.PriorOutcomeRef,
	})

	return &Proposal{
		RequestID:      check.PriorRequestID,
		Status:         model.RequestProcessed,
		ClientMatches:  clientMatches,
		ProductMatches: productMatches,
		Duplicate:      check,
		PriorDecisions: prior,
	}, nil
}

type orderLine struct {
	productID string
	quantity  int
}

// acceptedLines turns ranked product matches into order lines, keeping the
// best match per product above the acceptance score.
func acceptedLines(matches model.MatchResults, quantities map[string]int) []orderLine {
	seen := make(map[string]bool, len(matches))
	var lines []orderLine
	for _, m := range matches {
		if m.Score < minAcceptScore || seen[m.EntityID] {
			continue
		}
		seen[m.EntityID] = true
		qty := 1
		if q, ok := quantities[m.Token]; ok && q > 0 {
			qty = q
		}
		lines = append(lines, orderLine{productID: m.EntityID, quantity: qty})
	}
	return lines
}

// priceLines runs the pricing engine for every accepted line. Any
// collaborator failure aborts the whole request before the ledger write.
func (p *Processor) priceLines(ctx context.Context, clientID string, lines []orderLine) ([]model.PricingDecision, error) {
	decisions := make([]model.PricingDecision, 0, len(lines))
	for _, line := range lines {
		supplierPrice, err := p.currentSupplierPrice(ctx, line.productID)
		if err != nil {
			return nil, err
		}

		decision, err := p.pricer.Decide(ctx, pricing.Input{
			ClientID:      clientID,
			ProductID:     line.productID,
			Quantity:      line.quantity,
			SupplierPrice: supplierPrice,
		})
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *decision)
	}
	return decisions, nil
}

// currentSupplierPrice returns the latest known supplier price for the
// product.
func (p *Processor) currentSupplierPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	history, err := p.prices.PriceHistory(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: supplier price history for product %s: %v", common.ErrHistoryUnavailable, productID, err)
	}
	if len(history) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no supplier price recorded for product %s", common.ErrInvalidReference, productID)
	}
	latest := history[0]
	for _, point := range history[1:] {
		if point.Date.After(latest.Date) {
			latest = point
		}
	}
	return latest.Price, nil
}
