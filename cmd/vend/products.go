package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Veraticus/blue-coffee-vending/internal/catalog"
	"github.com/Veraticus/blue-coffee-vending/internal/cli"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/spf13/cobra"
)

func productsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the product catalog",
		Long:  `List the products the machine offers, grouped by slot category.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			return listProducts(cmd.Context(), cmd.OutOrStdout(), client, all)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include sold out products")

	return cmd
}

func listProducts(ctx context.Context, out io.Writer, client service.VendingClient, all bool) error {
	products, err := client.ListProducts(ctx, all)
	if err != nil {
		return userError("load products", err)
	}

	if len(products) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatInfo("No products available"))
		return err
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("Products")); err != nil {
		return err
	}

	for _, group := range catalog.GroupProducts(products) {
		if _, err := fmt.Fprintln(out, cli.SubtitleStyle.Render(fmt.Sprintf("%s %s", group.Icon, group.Label))); err != nil {
			return err
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tSLOT\tNAME\tPRICE\tSTOCK")
		for _, p := range group.Products {
			stock := fmt.Sprintf("%d", p.Stock)
			if !p.InStock() {
				stock = cli.SoldOutStyle.Render("sold out")
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", p.ID, p.SlotCode, p.Name, cli.FormatAmount(p.Price), stock)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}

	return nil
}
