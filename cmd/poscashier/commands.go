package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "poscashier",
		Short:         "Point-of-sale cashier service",
		Long:          `Runs the cashier checkout API in front of the store's inventory, customer and transaction services.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the cashier HTTP API",
		RunE:  runServe,
	}
	itemsCmd = &cobra.Command{
		Use:   "items [search]",
		Short: "List inventory items, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runItems,
	}
	receiptsCmd = &cobra.Command{
		Use:   "receipts",
		Short: "Browse the local receipt journal",
	}
	receiptsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the most recent receipts",
		RunE:  runReceiptsList,
	}
	receiptsShowCmd = &cobra.Command{
		Use:   "show [transaction-id]",
		Short: "Print one receipt",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := strconv.ParseInt(args[0], 10, 64)
			return err
		},
		RunE: runReceiptsShow,
	}

	listLimit int
)

func init() {
	receiptsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "number of receipts to show")

	receiptsCmd.AddCommand(receiptsListCmd, receiptsShowCmd)
	rootCmd.AddCommand(serveCmd, itemsCmd, receiptsCmd)
}
