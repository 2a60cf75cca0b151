package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"financas/internal/ofx"
	"financas/internal/services"
	"financas/internal/storage"
)

func importOFXCmd() *cobra.Command {
	var expenseCategory, incomeCategory string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-ofx <file>",
		Short: "Import bank or credit card transactions from an OFX/QFX file",
		Long: `Import transactions from an OFX/QFX statement into the ledger.

Debits become expenses and credits become income. Each line is keyed by
account and FITID, so importing the same file twice adds nothing new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expenseID, err := parseCategoryID(expenseCategory)
			if err != nil {
				return err
			}
			incomeID, err := parseCategoryID(incomeCategory)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open OFX file: %w", err)
			}
			defer f.Close()

			txs, err := ofx.Parse(f, ofx.Options{ExpenseCategoryID: expenseID, IncomeCategoryID: incomeID})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, warningStyle.Render("No transactions found in "+args[0]))
				return nil
			}
			if dryRun {
				rows := make([][]string, len(txs))
				for i, t := range txs {
					rows[i] = []string{t.Date.String(), string(t.Type), t.Description, t.Amount.String()}
				}
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d transaction(s) in %s", len(txs), args[0])))
				fmt.Fprintln(out, renderTable([]string{"Date", "Type", "Description", "Amount"}, rows, 3))
				return nil
			}

			repo, err := storage.NewSQLiteRepository(dbPath())
			if err != nil {
				return err
			}
			defer repo.Close()

			bar := progressbar.NewOptions(len(txs),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Importing transactions"),
				progressbar.OptionClearOnFinish(),
			)

			ledger := services.NewLedgerService(repo, nil)
			inserted, err := ledger.ImportTransactions(cmd.Context(), txs, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("imported %d before failing: %w", inserted, err)
			}

			slog.Info("OFX import finished", "file", args[0], "parsed", len(txs), "inserted", inserted)
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Imported %d new transaction(s)", inserted)))
			if skipped := len(txs) - inserted; skipped > 0 {
				fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("%d already present, skipped", skipped)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expenseCategory, "expense-category", "", "category ID assigned to imported expenses")
	cmd.Flags().StringVar(&incomeCategory, "income-category", "", "category ID assigned to imported income")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the parsed transactions without saving them")
	return cmd
}
