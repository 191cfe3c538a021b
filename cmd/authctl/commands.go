package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/httpapi"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Authentication service and administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (env vars override it)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newPurgeSessionsCmd(opts),
		newSetActiveCmd(opts, "disable-user", "Disable an account and revoke its sessions", false),
		newSetActiveCmd(opts, "enable-user", "Re-enable a disabled account", true),
	)
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := postgres.RunMigrations(ctx, a.db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			proxies, err := a.cfg.Proxies()
			if err != nil {
				return err
			}
			h := &httpapi.Handler{
				Engine:  a.engine,
				OAuth:   a.oauth,
				Limiter: a.emailLimiter(),
				Metrics: promexport.NewCollector(a.engine).Handler(),
				Proxies: proxies,
				Log:     a.log,
			}
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           h.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			a.log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errMissingDatabase
			}
			db, err := postgres.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newPurgeSessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired and invalidated sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.PurgeExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
			return nil
		},
	}
}

func newSetActiveCmd(opts *options, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if active {
				err = a.engine.EnableUser(cmd.Context(), args[0])
			} else {
				err = a.engine.DisableUser(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", use, args[0])
			return nil
		},
	}
}
