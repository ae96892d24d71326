package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/blue-coffee-vending/internal/change"
	"github.com/Veraticus/blue-coffee-vending/internal/cli"
	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/Veraticus/blue-coffee-vending/internal/session"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type buyOptions struct {
	pay       []int
	productID int
	dryRun    bool
}

func buyCmd() *cobra.Command {
	var opts buyOptions

	cmd := &cobra.Command{
		Use:   "buy <product-id>",
		Short: "Buy a product without the kiosk",
		Long: `Run one purchase through the same session logic the kiosk uses: select the
product, insert each --pay denomination in order, then confirm.

With --dry-run the session is cancelled instead of confirmed.`,
		Example: `  vend buy 3 --pay 20,10
  vend buy 3 --pay 50 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid product id %q: %w", args[0], err)
			}
			opts.productID = id

			client, cfg, err := newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			journal, err := initJournal(ctx)
			if err != nil {
				return err
			}
			if journal != nil {
				defer func() { _ = journal.Close() }()
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx = handler.HandleInterrupts(ctx)

			p := purchase{
				out:     cmd.OutOrStdout(),
				client:  client,
				machine: newMachine(client, cfg, journal),
				tracker: handler,
			}
			return p.run(ctx, opts)
		},
	}

	cmd.Flags().IntSliceVar(&opts.pay, "pay", nil, "denominations to insert, in order (e.g. 20,10)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "cancel instead of confirming")
	_ = cmd.MarkFlagRequired("pay")

	return cmd
}

// purchase drives one scripted purchase through the session machine.
type purchase struct {
	out     io.Writer
	client  service.VendingClient
	machine *session.Machine
	tracker *cli.InterruptHandler
}

func (p purchase) run(ctx context.Context, opts buyOptions) error {
	denoms := make([]model.Denomination, 0, len(opts.pay))
	for _, v := range opts.pay {
		d, err := model.ParseDenomination(v)
		if err != nil {
			return common.NewUserError(session.Message(session.ErrInvalidDenomination), err)
		}
		denoms = append(denoms, d)
	}

	product, err := p.findProduct(ctx, opts.productID)
	if err != nil {
		return err
	}

	// Whatever happens below, a session left open is cancelled so the journal
	// records it.
	defer p.abandonOpenSession(ctx)

	if err := p.machine.SelectProduct(ctx, product); err != nil {
		return userError("select "+product.Name, err)
	}
	p.track()

	fmt.Fprintf(p.out, "%s\n", cli.FormatTitle(fmt.Sprintf("%s  %s", product.Name, cli.FormatAmount(product.Price))))

	bar := newPaymentBar(p.out, product)
	for _, d := range denoms {
		if err := p.machine.InsertMoney(ctx, d); err != nil {
			return userError("insert "+d.String(), err)
		}
		p.track()

		inserted := p.machine.View().Inserted
		if err := bar.Set(min(inserted, product.Price)); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	v := p.machine.View()
	if v.Remaining() > 0 {
		fmt.Fprintln(p.out)
		return common.NewUserError(
			fmt.Sprintf("Inserted %s of %s", cli.FormatAmount(v.Inserted), cli.FormatAmount(product.Price)),
			session.ErrInsufficientFunds,
		)
	}

	if opts.dryRun {
		if err := p.machine.CancelPurchase(ctx); err != nil {
			return userError("cancel", err)
		}
		p.track()
		fmt.Fprintln(p.out, cli.FormatInfo(fmt.Sprintf("Dry run: session %s cancelled with %s inserted", v.SessionID, cli.FormatAmount(v.Inserted))))
		return nil
	}

	if err := p.machine.ConfirmPurchase(ctx); err != nil {
		return userError("confirm purchase", err)
	}
	p.track()

	done, ok := p.machine.State().(session.Completed)
	if !ok {
		return fmt.Errorf("confirm purchase: %w", common.ErrUnexpectedResponse)
	}
	return printReceipt(p.out, done.Result)
}

func (p purchase) findProduct(ctx context.Context, id int) (model.Product, error) {
	products, err := p.client.ListProducts(ctx, true)
	if err != nil {
		return model.Product{}, userError("load products", err)
	}

	for _, product := range products {
		if product.ID != id {
			continue
		}
		if !product.InStock() {
			return model.Product{}, common.NewUserError(fmt.Sprintf("%s is sold out", product.Name), nil)
		}
		return product, nil
	}

	return model.Product{}, common.NewUserError(fmt.Sprintf("No product with id %d", id), common.ErrNotFound)
}

func (p purchase) abandonOpenSession(ctx context.Context) {
	if _, open := p.machine.State().(session.Selecting); !open {
		return
	}
	if err := p.machine.CancelPurchase(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, session.ErrStaleResponse) {
		slog.Warn("Failed to cancel open session", "error", err)
	}
	p.track()
}

func (p purchase) track() {
	if p.tracker == nil {
		return
	}
	v := p.machine.View()
	p.tracker.Track(v.SessionID, v.Inserted)
}

func newPaymentBar(out io.Writer, product model.Product) *progressbar.ProgressBar {
	return progressbar.NewOptions(product.Price,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]Paying %s...[reset]", model.Currency)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(out); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func printReceipt(out io.Writer, result model.TransactionResult) error {
	lines := []string{
		fmt.Sprintf("%s %s", cli.BoldStyle.Render("Product:"), result.Product.Name),
		fmt.Sprintf("%s %s", cli.BoldStyle.Render("Paid:   "), cli.FormatAmount(result.Paid)),
		fmt.Sprintf("%s %s", cli.BoldStyle.Render("Price:  "), cli.FormatAmount(result.Price)),
		fmt.Sprintf("%s %s", cli.BoldStyle.Render("Change: "), cli.FormatAmount(result.Change)),
	}
	if result.HasChange() {
		lines = append(lines, "")
		for _, row := range change.Render(result.ChangeDetail) {
			lines = append(lines, fmt.Sprintf("  %s %s", cli.MoneyIcon(row.Kind), row))
		}
	}
	lines = append(lines, "", cli.SubtleStyle.Render(fmt.Sprintf("%d left in stock", result.RemainingStock)))

	box := cli.RenderBox(cli.ReceiptIcon+" Receipt", strings.Join(lines, "\n"))
	_, err := fmt.Fprintf(out, "%s\n%s\n", cli.FormatSuccess("Purchase complete"), box)
	return err
}
