package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"financas/internal/core"
	"financas/internal/storage"
)

func cardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cards",
		Short: "List cards with their used and available limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := storage.NewSQLiteRepository(dbPath())
			if err != nil {
				return err
			}
			defer repo.Close()

			usages, err := repo.ListCards(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(usages) == 0 {
				fmt.Fprintln(out, subtleStyle.Render("No cards yet."))
				return nil
			}
			fmt.Fprintln(out, titleStyle.Render("Cards"))
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Closing", "Due", "Limit", "Used", "Available"},
				cardRows(usages),
				4, 5, 6))
			return nil
		},
	}
}

func cardRows(usages []core.CardUsage) [][]string {
	rows := make([][]string, len(usages))
	for i, u := range usages {
		rows[i] = []string{
			strconv.FormatInt(u.Card.ID, 10),
			u.Card.Name,
			strconv.Itoa(u.Card.ClosingDay),
			strconv.Itoa(u.Card.DueDay),
			u.Card.Limit.String(),
			u.Used.String(),
			u.Available.String(),
		}
	}
	return rows
}
