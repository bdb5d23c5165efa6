package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "foodorderctl",
		Short:        "foodorderctl - command line client for the foodorder payment API",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("addr", envOr("FOODORDER_ADDR", "http://localhost:8080"), "foodorder base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("FOODORDER_TOKEN"), "bearer token")

	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(orderPaymentsCmd())
	rootCmd.AddCommand(paymentTypesCmd())
	rootCmd.AddCommand(paymentsCmd())
	rootCmd.AddCommand(tokenCmd())

	return rootCmd
}

func envOr(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
