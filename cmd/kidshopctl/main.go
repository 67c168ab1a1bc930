package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kidshop/internal/app"
	"kidshop/internal/config"
	"kidshop/internal/db"
	"kidshop/pkg/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "kidshopctl",
		Short:         "KidShop operations tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(resendCmd())
	rootCmd.AddCommand(redeliverCmd())
	rootCmd.AddCommand(lowStockCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config, connects to the database and builds the services container
func setup() (*app.Services, error) {
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	database, err := db.NewDatabase(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return app.NewServices(database, cfg), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations and seed initial data",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup()
			if err != nil {
				return err
			}
			return db.RunMigrations(s.DB, s.Config)
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, name, role string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin panel user, or reset an existing user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != models.RoleAdmin && role != models.RoleEditor {
				return fmt.Errorf("role must be %s or %s", models.RoleAdmin, models.RoleEditor)
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			s, err := setup()
			if err != nil {
				return err
			}
			user, err := s.AuthService.CreateUser(email, password, name, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) ready\n", user.Email, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (min 8 characters)")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "admin or editor")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [order-number]",
		Short: "Query the payment gateway for an order and apply the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			order, err := s.OrderService.GetByNumber(ctx, args[0])
			if err != nil {
				return fmt.Errorf("order %s: %w", args[0], err)
			}
			report, err := s.Pipeline.Reconcile(ctx, order.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func resendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend [order-number] [channel]",
		Short: "Send one notification channel of an order again",
		Long: `Send one notification channel of an order again, even if it was already sent.

Channels: admin_sms, customer_sms, customer_email, in_app`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			order, err := s.OrderService.GetByNumber(ctx, args[0])
			if err != nil {
				return fmt.Errorf("order %s: %w", args[0], err)
			}
			result, err := s.Pipeline.Resend(ctx, order.ID, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func redeliverCmd() *cobra.Command {
	var since time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "redeliver",
		Short: "Deliver notifications that were missed for recent paid or offline orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			channels, err := s.Pipeline.Deliverable(ctx)
			if err != nil {
				return err
			}
			orders, err := s.OrderRepo.ListUnnotifiedPaid(ctx, time.Now().Add(-since), limit, channels)
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to deliver")
				return nil
			}

			failed := 0
			for _, order := range orders {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				report, err := s.Pipeline.Redeliver(ctx, order.ID)
				if err != nil {
					failed++
					log.Error().Err(err).Str("order", order.OrderNumber).Msg("Redelivery failed")
					continue
				}
				if report.Failed() {
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d channels processed\n", order.OrderNumber, len(report.Channels))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d orders still have failed channels", failed, len(orders))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum orders per run")

	return cmd
}

func lowStockCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "Email the low stock report to the admin list",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			n, err := s.AlertService.SendLowStockAlert(ctx, force)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No products under their threshold")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Low stock report sent (%d products)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "send even if a report already went out today")

	return cmd
}
