package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahinestrog/mypos/internal/config"
	"github.com/ahinestrog/mypos/internal/inventory"
	"github.com/ahinestrog/mypos/internal/receipts"
)

func runItems(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	defer cancel()
	items, err := inventory.NewClient(newDoer(cfg, "inventory", cfg.InventoryURL)).Items(ctx)
	if err != nil {
		return err
	}
	term := ""
	if len(args) == 1 {
		term = args[0]
	}
	list := inventory.NewSnapshot(items, time.Now()).Search(term)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPRICE\tSTOCK")
	for _, it := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", it.ID, it.Name, it.ItemType, receipts.Money(it.Price), it.Stock)
	}
	return tw.Flush()
}

func openJournal() (*receipts.SQLiteStore, error) {
	cfg := config.Load()
	setupLogger(cfg)
	if _, err := os.Stat(cfg.ReceiptsDBPath); err != nil {
		return nil, fmt.Errorf("receipt journal %s: %w", cfg.ReceiptsDBPath, err)
	}
	return receipts.NewSQLiteStore(cfg.ReceiptsDBPath)
}

func runReceiptsList(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.Recent(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no receipts yet")
		return nil
	}
	for _, r := range list {
		fmt.Fprintln(cmd.OutOrStdout(), receipts.Summary(r))
	}
	return nil
}

func runReceiptsShow(cmd *cobra.Command, args []string) error {
	id, _ := strconv.ParseInt(args[0], 10, 64)
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), receipts.Format(r))
	return nil
}
