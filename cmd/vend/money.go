package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Veraticus/blue-coffee-vending/internal/cli"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/spf13/cobra"
)

func moneyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "money",
		Short: "Show the machine's coin and note stock",
		Long:  `Show how many coins and notes of each denomination the machine holds for change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			return listMoneyStock(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}
}

func listMoneyStock(ctx context.Context, out io.Writer, client service.VendingClient) error {
	stock, err := client.ListMoneyStock(ctx)
	if err != nil {
		return userError("load money stock", err)
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("Money stock")); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  \tDENOMINATION\tKIND\tQUANTITY\tVALUE")

	total := 0
	for _, s := range stock {
		value := int(s.Denom) * s.Quantity
		total += value
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\n", cli.MoneyIcon(s.Type), s.Denom, s.Type, s.Quantity, cli.FormatAmount(value))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "\n%s %s\n", cli.BoldStyle.Render("Total:"), cli.FormatAmount(total))
	return err
}
