package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"financas/internal/core"
	"financas/internal/services"
)

type scheduleOptions struct {
	amount       string
	date         string
	installments int
	closingDay   int
	dueDay       int
	custom       string
	overflow     string
}

func scheduleCmd() *cobra.Command {
	var opts scheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview the installment schedule of a purchase without saving it",
		Example: `  financas-cli schedule --amount 1200 --installments 3 --closing 5 --due 15 --date 2024-01-31
  financas-cli schedule --amount 300 --installments 2 --closing 10 --due 20 --custom 100,200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.overflow = viper.GetString(keyOverflow)
			installments, err := buildSchedule(opts)
			if err != nil {
				return err
			}

			var total core.Money
			rows := make([][]string, len(installments))
			for i, in := range installments {
				total = total.Add(in.Amount)
				rows[i] = []string{
					fmt.Sprintf("%d/%d", in.Number, len(installments)),
					in.DueDate.String(),
					in.Amount.String(),
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Installment schedule"))
			fmt.Fprintln(out, renderTable([]string{"#", "Due date", "Amount"}, rows, 2))
			fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("sum %s, day overflow %s", total, opts.overflow)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.amount, "amount", "", "purchase total, e.g. 1200.50")
	f.StringVar(&opts.date, "date", "", "purchase date YYYY-MM-DD (default today)")
	f.IntVar(&opts.installments, "installments", 1, "number of installments")
	f.IntVar(&opts.closingDay, "closing", 0, "card closing day (1-31)")
	f.IntVar(&opts.dueDay, "due", 0, "card due day (1-31)")
	f.StringVar(&opts.custom, "custom", "", "comma separated installment amounts, dot as decimal separator")
	f.String("overflow", string(core.DayOverflowClamp), "day overflow policy (clamp, rollover; rollover may repeat due dates)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("closing")
	_ = cmd.MarkFlagRequired("due")
	_ = viper.BindPFlag(keyOverflow, f.Lookup("overflow"))
	return cmd
}

func buildSchedule(opts scheduleOptions) ([]core.Installment, error) {
	cents, err := core.ParseDecimalToCents(opts.amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", opts.amount, err)
	}
	total := core.Money{Cents: cents}
	if err := total.Validate(); err != nil {
		return nil, err
	}

	date := core.Today()
	if opts.date != "" {
		if date, err = core.ParseDate(opts.date); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", opts.date, err)
		}
	}

	custom, err := parseAmounts(opts.custom)
	if err != nil {
		return nil, err
	}

	policy, err := core.ParseDayOverflowPolicy(opts.overflow)
	if err != nil {
		return nil, err
	}
	scheduler, err := services.NewInstallmentScheduler(policy)
	if err != nil {
		return nil, err
	}

	return scheduler.Schedule(services.ScheduleRequest{
		Total:         total,
		PurchaseDate:  date,
		Count:         opts.installments,
		CustomAmounts: custom,
	}, core.BillingCycle{ClosingDay: opts.closingDay, DueDay: opts.dueDay})
}

func parseAmounts(s string) ([]core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]core.Money, 0, len(parts))
	for _, p := range parts {
		cents, err := core.ParseDecimalToCents(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid custom amount %q: %w", p, err)
		}
		out = append(out, core.Money{Cents: cents})
	}
	return out, nil
}

func parseCategoryID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid category id %q", s)
	}
	return &id, nil
}
