package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	dbType     string
	dbPath     string
	logLevel   string
	jsonOutput bool
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "feedingd",
		Short:         "Feeding schedule and food inventory engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (defaults to $FEEDING_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flags.dbType, "db-type", "", "Database type: badger, bolt, postgres or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db-path", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Print reports as JSON")

	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newCheckCommand(flags))
	rootCmd.AddCommand(newForecastCommand(flags))
	rootCmd.AddCommand(newShoppingListCommand(flags))
	rootCmd.AddCommand(newImportReceiptCommand(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
