package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCheckCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the reminder check once and send notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.scheduler.RunScheduledCheck(cmd.Context(), a.now())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printCheckResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printCheckResult(w io.Writer, r *scheduler.CheckResult) {
	fmt.Fprintf(w, "Overdue: %d  Upcoming: %d  Notified: %d\n", r.Overdue, r.Upcoming, r.Notified)
	fmt.Fprintf(w, "Sent: %d  Failed: %d\n", r.Sent, r.Failed)
	for _, err := range r.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
}

func newForecastCommand(flags *rootFlags) *cobra.Command {
	var (
		foodType string
		foodSize string
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project food consumption and depletion dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			var key *domain.SKUKey
			if foodType != "" || foodSize != "" {
				k := domain.NewSKUKey(foodType, foodSize)
				if err := k.Validate(); err != nil {
					return err
				}
				key = &k
			}

			forecasts, err := a.inventory.GetForecast(cmd.Context(), key, lookback, a.now())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), forecasts)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SKU\tQTY\tRATE/DAY\tDAYS LEFT\tRUNS OUT\tSTATUS\tREORDER")
			for _, f := range forecasts {
				daysLeft := "-"
				if f.DaysRemaining != nil {
					daysLeft = fmt.Sprintf("%.1f", *f.DaysRemaining)
				}
				reorder := ""
				if f.NeedsReorder {
					reorder = fmt.Sprintf("order %d", f.SuggestedOrderQty)
				}
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%s\t%s\t%s\t%s\n",
					f.SKU, f.CurrentQuantity, f.DailyRate, daysLeft, orDash(domain.FormatDate(f.DepletionDate)), f.Status, reorder)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&foodType, "food-type", "", "Restrict to one SKU's food type")
	cmd.Flags().StringVar(&foodSize, "food-size", "", "Restrict to one SKU's food size")
	cmd.Flags().IntVar(&lookback, "lookback-days", 0, "Consumption window (defaults to config)")
	return cmd
}

func newShoppingListCommand(flags *rootFlags) *cobra.Command {
	var horizon int

	cmd := &cobra.Command{
		Use:   "shopping-list",
		Short: "List food to buy for the coming days",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if horizon == 0 {
				horizon = a.config.Shopping.HorizonDays
			}
			list, err := a.inventory.GetShoppingList(cmd.Context(), horizon, a.now())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), list)
			}
			printShoppingList(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().IntVar(&horizon, "horizon-days", 0, "Days to plan for (defaults to config)")
	return cmd
}

func printShoppingList(w io.Writer, list *service.ShoppingList) {
	fmt.Fprintf(w, "Shopping list %s to %s\n", list.From.Format(domain.DateLayout), list.To.Format(domain.DateLayout))
	if len(list.Entries) == 0 {
		fmt.Fprintln(w, "Nothing scheduled.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNEEDED\tIN STOCK\tSHORT\tORDER\tEST. COST")
	for _, e := range list.Entries {
		cost := "-"
		if e.EstimatedCost != nil {
			cost = e.EstimatedCost.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", e.SKU, e.Needed, e.InStock, e.Shortage, e.SuggestedOrderQty, cost)
	}
	_ = tw.Flush()
	if list.EstimatedTotal != nil {
		fmt.Fprintf(w, "Estimated total: %s\n", list.EstimatedTotal.StringFixed(2))
	}
}

func newImportReceiptCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import-receipt [file]",
		Short: "Stock food from receipt text (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.inventory.ImportReceipt(cmd.Context(), string(data))
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d item(s) from %s\n", len(result.Movements), orDash(result.Receipt.Supplier))
			for _, m := range result.Movements {
				fmt.Fprintf(out, "  %s +%d -> %d\n", m.SKU.Key, m.Transaction.Delta, m.SKU.Quantity)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
