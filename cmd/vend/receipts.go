package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/cli"
	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/Veraticus/blue-coffee-vending/internal/storage"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

type receiptsOptions struct {
	since     time.Duration
	limit     int
	abandoned bool
}

func receiptsCmd() *cobra.Command {
	var opts receiptsOptions

	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "List purchases recorded in the local journal",
		Long: `List completed purchases, newest first. With --abandoned, list sessions that
were left without confirming instead, along with the money inserted into them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			journal, err := initJournal(ctx)
			if err != nil {
				return err
			}
			if journal == nil {
				return common.NewUserError("The purchase journal is disabled (journal.enabled=false)", common.ErrMissingConfig)
			}
			defer func() { _ = journal.Close() }()

			return listReceipts(ctx, cmd.OutOrStdout(), journal, opts, time.Now())
		},
	}

	cmd.Flags().BoolVar(&opts.abandoned, "abandoned", false, "list abandoned sessions instead of purchases")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only entries newer than this (e.g. 24h)")

	return cmd
}

func listReceipts(ctx context.Context, out io.Writer, journal *storage.SQLiteJournal, opts receiptsOptions, now time.Time) error {
	filter := service.JournalFilter{Limit: opts.limit}
	if opts.since > 0 {
		since := now.Add(-opts.since)
		filter.Since = &since
	}

	if opts.abandoned {
		return listAbandoned(ctx, out, journal, filter)
	}

	records, err := journal.ListPurchases(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list purchases: %w", err)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatInfo("No purchases recorded yet"))
		return err
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("Purchases")); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tPRODUCT\tPRICE\tPAID\tCHANGE")
	total := 0
	for _, r := range records {
		total += r.Price
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CompletedAt.Local().Format(timeLayout),
			r.SessionID,
			r.ProductName,
			cli.FormatAmount(r.Price),
			cli.FormatAmount(r.Paid),
			cli.FormatAmount(r.Change),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "\n%d purchases, %s in sales\n", len(records), cli.FormatAmount(total))
	return err
}

func listAbandoned(ctx context.Context, out io.Writer, journal *storage.SQLiteJournal, filter service.JournalFilter) error {
	records, err := journal.ListAbandoned(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list abandoned sessions: %w", err)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatInfo("No abandoned sessions"))
		return err
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("Abandoned sessions")); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tPRODUCT\tREASON\tINSERTED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.AbandonedAt.Local().Format(timeLayout),
			r.SessionID,
			r.ProductName,
			r.Reason,
			cli.FormatAmount(r.Inserted),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// The sum covers the whole filter window, not just the listed rows.
	held, err := journal.UnreleasedFunds(ctx, service.JournalFilter{Since: filter.Since})
	if err != nil {
		return fmt.Errorf("failed to sum unreleased funds: %w", err)
	}
	if held > 0 {
		_, err = fmt.Fprintf(out, "\n%s\n", cli.FormatWarning(fmt.Sprintf("%s inserted into abandoned sessions was not released by this client", cli.FormatAmount(held))))
		return err
	}
	return nil
}
