package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/celikd/orderdesk/internal/cli"
	"github.com/celikd/orderdesk/internal/model"
)

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the product catalog",
	}

	cmd.AddCommand(productsImportCmd())
	cmd.AddCommand(productsListCmd())
	return cmd
}

func productsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <products.json>",
		Short: "Import or update products from a JSON file",
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
				return fmt.Errorf("failed to read products file: %w", err)
			}

			var products []model.Product
			if err := json.Unmarshal(data, &products); err != nil {
				return fmt.Errorf("failed to decode products file: %w", err)
			}

			for i := range products {
				if err := store.UpsertProduct(ctx, &products[i]); err != nil {
					return fmt.Errorf("failed to import product %s: %w", products[i].ID, err)
				}
			}

			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Imported %d products", len(products))))
			return nil
		},
	}
}

func productsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			products, err := store.ListProducts(ctx)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no products in the catalog"))
				return nil
			}

			cmd.Println(cli.TitleStyle.Render("Products"))
			for _, p := range products {
				cmd.Printf("  %s  %s  %s\n",
					cli.BoldStyle.Render(p.ID), p.Code, p.Name)
			}
			return nil
		},
	}
}
