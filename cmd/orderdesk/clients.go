package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celikd/orderdesk/internal/cli"
	"github.com/celikd/orderdesk/internal/model"
)

func clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage the customer directory",
	}

	cmd.AddCommand(clientsImportCmd())
	cmd.AddCommand(clientsListCmd())
	return cmd
}

func clientsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <clients.json>",
		Short: "Import or update clients from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			data, err := os.ReadFile(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to read clients file: %w", err)
			}

			var clients []model.Client
			if err := json.Unmarshal(data, &clients); err != nil {
				return fmt.Errorf("failed to decode clients file: %w", err)
			}

			for i := range clients {
				if err := store.UpsertClient(ctx, &clients[i]); err != nil {
					return fmt.Errorf("failed to import client %s: %w", clients[i].ID, err)
				}
			}

			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Imported %d clients", len(clients))))
			return nil
		},
	}
}

func clientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			clients, err := store.ListClients(ctx)
			if err != nil {
				return err
			}
			if len(clients) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no clients in the directory"))
				return nil
			}

			cmd.Println(cli.TitleStyle.Render("Clients"))
			for _, c := range clients {
				cmd.Printf("  %s  %s  %s\n",
					cli.BoldStyle.Render(c.ID), c.Name,
					cli.SubtleStyle.Render(strings.Join(c.Domains, ", ")))
			}
			return nil
		},
	}
}
