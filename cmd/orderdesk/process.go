package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/celikd/orderdesk/internal/cli"
	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/engine"
	"github.com/celikd/orderdesk/internal/model"
)

// requestSchema validates inbound request documents before they enter the
// pipeline.
const requestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["sender", "body"],
	"properties": {
		"sender": {"type": "string", "minLength": 3},
		"subject": {"type": "string"},
		"body": {"type": "string"},
		"client_candidates": {"type": "array", "items": {"type": "string"}},
		"product_candidates": {"type": "array", "items": {"type": "string"}},
		"quantities": {"type": "object", "additionalProperties": {"type": "integer", "minimum": 1}},
		"received_at": {"type": "string"}
	}
}`

// requestDocument is the on-disk JSON shape of one inbound request.
type requestDocument struct {
	Sender            string         `json:"sender"`
	Subject           string         `json:"subject"`
	Body              string         `json:"body"`
	ClientCandidates  []string       `json:"client_candidates"`
	ProductCandidates []string       `json:"product_candidates"`
	Quantities        map[string]int `json:"quantities"`
	ReceivedAt        string         `json:"received_at"`
}

func processCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "process [request.json]",
		Short: "Run the order proposal pipeline on inbound request documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			processor, err := initProcessor(store)
			if err != nil {
				return err
			}

			if dir != "" {
				return processDirectory(cmd, processor, dir)
			}
			if len(args) != 1 {
				return fmt.Errorf("either a request file or --dir is required")
			}

			req, err := loadRequest(args[0])
			if err != nil {
				return err
			}
			proposal, err := runPipeline(ctx, processor, req)
			if err != nil {
				return err
			}
			cmd.Println(cli.BoxStyle.Render("Proposal for " + filepath.Base(args[0])))
			printProposal(cmd, proposal)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "process every .json request in a directory")
	return cmd
}

func processDirectory(cmd *cobra.Command, processor *engine.Processor, dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list request directory: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println(cli.SubtleStyle.Render("no request documents found"))
		return nil
	}
	sort.Strings(entries)

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Processing requests"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	for _, path := range entries {
		req, err := loadRequest(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		proposal, err := runPipeline(cmd.Context(), processor, req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_ = bar.Add(1)
		cmd.Println()
		cmd.Println(cli.TitleStyle.Render(filepath.Base(path)))
		printProposal(cmd, proposal)
	}
	return nil
}

// runPipeline processes one request, retrying transient infrastructure
// failures. Request-level outcomes (ambiguity, bad references) are never
// retried.
func runPipeline(ctx context.Context, processor *engine.Processor, req *engine.InboundRequest) (*engine.Proposal, error) {
	var proposal *engine.Proposal
	err := common.WithRetry(ctx, func() error {
		var perr error
		proposal, perr = processor.Process(ctx, *req)
		return perr
	}, common.RetryOptions{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// loadRequest reads, schema-validates and decodes one request document.
func loadRequest(path string) (*engine.InboundRequest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied path is the point
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	schema, err := jsonschema.CompileString("request.schema.json", requestSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile request schema: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("request is not valid JSON: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, common.NewUserError("request document does not match the expected format", err)
	}

	var doc requestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	req := engine.InboundRequest{
		Sender:            doc.Sender,
		Subject:           doc.Subject,
		Body:              doc.Body,
		ClientCandidates:  doc.ClientCandidates,
		ProductCandidates: doc.ProductCandidates,
		Quantities:        doc.Quantities,
	}
	if doc.ReceivedAt != "" {
		at, err := time.Parse(time.RFC3339, doc.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid received_at: %w", err)
		}
		req.ReceivedAt = at
	}
	return &req, nil
}

func printProposal(cmd *cobra.Command, p *engine.Proposal) {
	if p.Status == model.RequestNeedsReview {
		cmd.Println(cli.WarningStyle.Render("NEEDS REVIEW: " + p.ReviewReason))
		for _, m := range p.ClientMatches {
			cmd.Printf("  candidate client %s (%s) score %.1f via %s\n",
				m.EntityID, m.Name, m.Score, m.Strategy)
		}
		return
	}

	if top := p.ClientMatches.Top(); top != nil {
		cmd.Printf("%s %s (%s) score %.1f via %s\n",
			cli.BoldStyle.Render("Client:"), top.EntityID, top.Name, top.Score, top.Strategy)
	}

	switch p.Duplicate.Type {
	case model.DuplicateStrict:
		cmd.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"Strict duplicate of request %s (confidence %.2f); returning prior outcome",
			p.Duplicate.PriorRequestID, p.Duplicate.Confidence)))
		printDecisions(cmd, p.PriorDecisions)
		return
	case model.DuplicateProbable, model.DuplicatePossible:
		cmd.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"%s duplicate of request %s (confidence %.2f); flagged for review",
			strings.ToLower(string(p.Duplicate.Type)),
			p.Duplicate.PriorRequestID, p.Duplicate.Confidence)))
	}

	printDecisions(cmd, p.Decisions)
	cmd.Println(cli.SuccessStyle.Render("Recorded as request " + p.RequestID))
}

func printDecisions(cmd *cobra.Command, decisions []model.PricingDecision) {
	for _, d := range decisions {
		validation := cli.SuccessStyle.Render("auto")
		if d.RequiresValidation {
			validation = cli.WarningStyle.Render("needs validation")
		}
		cmd.Printf("  %s x%d -> %s  [%s, confidence %.2f, %s]\n",
			d.Input.ProductID, d.Input.Quantity, d.UnitPrice.StringFixed(2),
			d.Case, d.Confidence, validation)
		cmd.Println(cli.SubtleStyle.Render("    " + d.Justification))
		for _, alert := range d.Alerts {
			cmd.Println(cli.ErrorStyle.Render("    ! " + alert))
		}
	}
}
