package main

import (
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/tui"
	"github.com/Veraticus/blue-coffee-vending/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func kioskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiosk",
		Short: "Run the interactive vending kiosk",
		Long: `Start the full-screen kiosk: browse the catalog, insert money, confirm the
purchase and collect change. Logs go to ~/.local/share/vend/vend.log unless
--log-file is given.`,
		RunE: runKiosk,
	}
	addKioskFlags(cmd)
	return cmd
}

func addKioskFlags(cmd *cobra.Command) {
	cmd.Flags().String("theme", "default", "color theme (default, catppuccin-mocha)")
	cmd.Flags().Bool("hide-sold-out", false, "hide products with no stock")
}

func runKiosk(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	journal, err := initJournal(ctx)
	if err != nil {
		return err
	}
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	theme, _ := cmd.Flags().GetString("theme")
	if !cmd.Flags().Changed("theme") && viper.IsSet("ui.theme") {
		theme = viper.GetString("ui.theme")
	}
	hideSoldOut, _ := cmd.Flags().GetBool("hide-sold-out")

	return tui.Run(ctx,
		tui.WithClient(client),
		tui.WithMachine(newMachine(client, cfg, journal)),
		tui.WithTheme(themes.GetTheme(theme)),
		tui.WithSoldOut(!hideSoldOut),
		tui.WithRequestTimeout(requestBudget(cfg.Timeout, cfg.CatalogRetries)),
	)
}

// requestBudget bounds one UI operation: every catalog attempt may use the
// full per-request timeout, plus the backoff between attempts.
func requestBudget(timeout time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*timeout + 5*time.Second
}
