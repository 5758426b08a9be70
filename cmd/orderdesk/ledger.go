package main

import (
	"github.com/spf13/cobra"

	"github.com/celikd/orderdesk/internal/cli"
	"github.com/celikd/orderdesk/internal/model"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the decision ledger",
	}

	cmd.AddCommand(ledgerDecisionsCmd())
	cmd.AddCommand(ledgerRequestsCmd())
	return cmd
}

func ledgerDecisionsCmd() *cobra.Command {
	var (
		requestID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List pricing decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var decisions []model.PricingDecision
			if requestID != "" {
				decisions, err = store.ListDecisionsForRequest(ctx, requestID)
			} else {
				decisions, err = store.ListRecentDecisions(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(decisions) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no decisions recorded"))
				return nil
			}

			cmd.Println(cli.TitleStyle.Render("Pricing decisions"))
			for _, d := range decisions {
				marker := ""
				if d.Supersedes != "" {
					marker = cli.SubtleStyle.Render("  (supersedes " + d.Supersedes + ")")
				}
				cmd.Printf("  %s  request %s  %s x%d -> %s  [%s, confidence %.2f]%s\n",
					d.CreatedAt.Format("2006-01-02 15:04"), d.RequestID,
					d.Input.ProductID, d.Input.Quantity, d.UnitPrice.StringFixed(2),
					d.Case, d.Confidence, marker)
				cmd.Println(cli.SubtleStyle.Render("    " + d.Justification))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "show decisions for one request")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum decisions to show")
	return cmd
}

func ledgerRequestsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List processed requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			requests, err := store.ListRequests(ctx, limit)
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no requests recorded"))
				return nil
			}

			cmd.Println(cli.TitleStyle.Render("Processed requests"))
			for _, r := range requests {
				status := string(r.Status)
				switch r.Status {
				case model.RequestNeedsReview:
					status = cli.WarningStyle.Render(status)
				case model.RequestSuperseded:
					status = cli.SubtleStyle.Render(status)
				default:
					status = cli.SuccessStyle.Render(status)
				}
				cmd.Printf("  %s  %s  %s  client %s  %s\n",
					r.FirstSeen.Format("2006-01-02 15:04"), r.ID,
					status, r.Fingerprint.ClientID, cli.SubtleStyle.Render(r.Subject))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum requests to show")
	return cmd
}
