package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:          "swap-service",
		Short:        "ScentSwap API: обмены ароматами между пользователями",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "уровень логирования (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
