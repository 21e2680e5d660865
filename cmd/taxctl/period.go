package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linesmerrill/vehicle-tax-api/locks"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	"github.com/linesmerrill/vehicle-tax-api/tax"
)

func newActivatePeriodCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "activate-period",
		Short: "Make a fiscal period the active one",
		Long:  "Validate the rate table of the fiscal period for --year and move the current-period pointer to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := tax.PeriodManager{Store: store}.Activate(ctx, year)
			if err != nil {
				return fmt.Errorf("activate %d: %w", year, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fiscal period %d is active (%s)\n", p.Year, p.ID.Hex())
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year to activate")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newExpireStaleCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "expire-stale",
		Short: "Expire pending PSE payments older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := payments.NewService(store, locks.NewLocal()).ExpireStale(ctx, olderThan)
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d payment(s)\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "age after which a pending payment expires")
	return cmd
}
