package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logCloser io.Closer
	version   = "dev"
	rootCmd   = &cobra.Command{
		Use:   "vend",
		Short: "☕ Blue Coffee vending kiosk",
		Long: `vend is the customer-facing client for a Blue Coffee vending machine.

Run it without a subcommand to start the kiosk. The other commands read the
catalog, script a purchase, or list the local purchase journal.`,
		PersistentPreRunE: initConfig,
		RunE:              runKiosk,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/vend/config.yaml)")
	rootCmd.PersistentFlags().String("backend-url", "", "vending backend address (default: "+config.DefaultBackendURL+")")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")

	// Bind flags to viper
	_ = viper.BindPFlag("backend.url", rootCmd.PersistentFlags().Lookup("backend-url"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))

	addKioskFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(kioskCmd())
	rootCmd.AddCommand(productsCmd())
	rootCmd.AddCommand(moneyCmd())
	rootCmd.AddCommand(buyCmd())
	rootCmd.AddCommand(receiptsCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if logCloser != nil {
		_ = logCloser.Close()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Search for config in standard locations
		viper.AddConfigPath(fmt.Sprintf("%s/.config/vend", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. VEND_BACKEND_URL
	viper.SetEnvPrefix("VEND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := setupLogging(drawsTUI(cmd)); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

// setupLogging configures slog. The kiosk logs to a file by default so log
// lines do not tear the screen.
func setupLogging(tui bool) error {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}

	output := viper.GetString("logging.file")
	if output == "" && tui {
		output = config.DefaultKioskLogPath
	}

	closer, err := common.SetupLogger(level, viper.GetString("logging.format"), config.ExpandPath(output))
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

// drawsTUI reports whether cmd runs the kiosk, which is the root command's default.
func drawsTUI(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "kiosk"
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vend version %s\n", version)
		},
	}
}
