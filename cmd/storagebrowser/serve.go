package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/storagebrowser/internal/controlplane"
	"github.com/openmined/storagebrowser/internal/utils"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	renewInterval   = time.Minute
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var (
		addr      string
		rateLimit string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local control plane",
		Long: `Run a loopback HTTP API over the logged in session.

Requests need the bearer token printed on start, or the one set with
control_plane.auth_token in the config or STORAGEBROWSER_CONTROL_PLANE_AUTH_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			if cmd.Flags().Changed("addr") {
				a.cfg.ControlPlane.Addr = addr
			}

			token := a.cfg.ControlPlane.AuthToken
			if token == "" {
				if token, err = utils.RandToken(32); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gray.Render("token:"), token)
			}

			server, err := controlplane.NewServer(&controlplane.Config{
				Addr:      a.cfg.ControlPlane.Addr,
				AuthToken: token,
				RateLimit: rateLimit,
			}, controlplane.NewHandlers(a.resolver, a.dispatcher, a.executor).WithStats(a.client))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(ctx)
			}()
			printSuccess(cmd.OutOrStdout(), "control plane on http://%s", a.cfg.ControlPlane.Addr)

			renew := time.NewTicker(renewInterval)
			defer renew.Stop()

			for {
				select {
				case err := <-errCh:
					return err
				case <-renew.C:
					if err := a.requireSession(ctx); err != nil {
						slog.Warn("session renewal failed", "error", err)
					}
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					a.coordinator.AbortAll()
					slog.Info("control plane stopping", "traffic", a.client.Stats())
					if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					return <-errCh
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&rateLimit, "rate-limit", controlplane.DefaultRateLimit, "request rate for mutating routes, e.g. 20-S")
	return cmd
}
