package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/celikd/orderdesk/internal/cli"
	"github.com/celikd/orderdesk/internal/model"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage sales and supplier price history",
	}

	cmd.AddCommand(historyAddSaleCmd())
	cmd.AddCommand(historyAddPriceCmd())
	cmd.AddCommand(historyImportCmd())
	cmd.AddCommand(historySalesCmd())
	return cmd
}

func historyAddSaleCmd() *cobra.Command {
	var (
		date     string
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "add-sale <product-id> <client-id> <unit-price>",
		Short: "Record one historical sale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid unit price %q: %w", args[2], err)
			}
			at, err := parseDate(date)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sale := model.Sale{
				Date:     at,
				Price:    price,
				Quantity: quantity,
				ClientID: args[1],
			}
			if err := store.AddSale(ctx, args[0], sale); err != nil {
				return err
			}

			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"Recorded sale of %s to %s at %s", args[0], args[1], price.StringFixed(2))))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "sale date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "units sold")
	return cmd
}

func historyAddPriceCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "add-price <product-id> <supplier-price>",
		Short: "Record one supplier price point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid supplier price %q: %w", args[1], err)
			}
			at, err := parseDate(date)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.AddSupplierPrice(ctx, args[0], model.PricePoint{Date: at, Price: price}); err != nil {
				return err
			}

			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"Recorded supplier price %s for %s", price.StringFixed(2), args[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "effective date (YYYY-MM-DD, default today)")
	return cmd
}

// historyImportFile is the bulk import document: sales and supplier prices
// keyed by product.
type historyImportFile struct {
	Sales []struct {
		ProductID string          `json:"product_id"`
		ClientID  string          `json:"client_id"`
		Date      string          `json:"date"`
		Price     decimal.Decimal `json:"price"`
		Quantity  int             `json:"quantity"`
	} `json:"sales"`
	SupplierPrices []struct {
		ProductID string          `json:"product_id"`
		Date      string          `json:"date"`
		Price     decimal.Decimal `json:"price"`
	} `json:"supplier_prices"`
}

func historyImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <history.json>",
		Short: "Bulk import sales and supplier price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to read history file: %w", err)
			}

			var doc historyImportFile
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to decode history file: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bar := progressbar.NewOptions(len(doc.Sales)+len(doc.SupplierPrices),
				progressbar.OptionSetDescription("Importing history"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)

			for _, s := range doc.Sales {
				at, err := parseDate(s.Date)
				if err != nil {
					return fmt.Errorf("sale for %s: %w", s.ProductID, err)
				}
				qty := s.Quantity
				if qty == 0 {
					qty = 1
				}
				sale := model.Sale{Date: at, Price: s.Price, Quantity: qty, ClientID: s.ClientID}
				if err := store.AddSale(ctx, s.ProductID, sale); err != nil {
					return fmt.Errorf("failed to import sale for %s: %w", s.ProductID, err)
				}
				_ = bar.Add(1)
			}
			for _, p := range doc.SupplierPrices {
				at, err := parseDate(p.Date)
				if err != nil {
					return fmt.Errorf("supplier price for %s: %w", p.ProductID, err)
				}
				if err := store.AddSupplierPrice(ctx, p.ProductID, model.PricePoint{Date: at, Price: p.Price}); err != nil {
					return fmt.Errorf("failed to import supplier price for %s: %w", p.ProductID, err)
				}
				_ = bar.Add(1)
			}

			cmd.Println()
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"Imported %d sales and %d supplier prices",
				len(doc.Sales), len(doc.SupplierPrices))))
			return nil
		},
	}
}

func historySalesCmd() *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "sales <product-id>",
		Short: "Show recorded sales for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sales, err := store.SalesFor(ctx, clientID, args[0])
			if err != nil {
				return err
			}
			if len(sales) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no sales recorded"))
				return nil
			}

			cmd.Println(cli.TitleStyle.Render("Sales for " + args[0]))
			for _, s := range sales {
				cmd.Printf("  %s  %s x%d  client %s\n",
					s.Date.Format("2006-01-02"), s.Price.StringFixed(2), s.Quantity, s.ClientID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "restrict to one client")
	return cmd
}

// parseDate accepts YYYY-MM-DD or an empty string meaning now.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return at, nil
}
