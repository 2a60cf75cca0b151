// Command financas-cli is the administrative tool for the financas database:
// migrations, card overviews, installment previews, OFX imports and the
// Google Sheets OAuth consent flow.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"financas/internal/cli"
	applog "financas/internal/log"
)

const (
	keyDBPath   = "sqlite_db_path"
	keyLogLevel = "log_level"
	keyOverflow = "installment_day_overflow"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "financas-cli",
		Short: "Administrative tool for the financas ledger",
		Long: `financas-cli manages the local financas database.

Settings come from flags, then environment variables (the same names the
server reads, e.g. SQLITE_DB_PATH), then an optional config file.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, optional)")
	root.PersistentFlags().String("db", "./data/financas.db", "SQLite database path")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag(keyDBPath, root.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag(keyLogLevel, root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(migrateCmd())
	root.AddCommand(cardsCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(importOFXCmd())
	root.AddCommand(sheetsAuthCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString(keyLogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", viper.GetString(keyLogLevel), err)
	}
	cli.SetupLogger(applog.ComponentCLI, level)
	return nil
}

func dbPath() string {
	return viper.GetString(keyDBPath)
}
