package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loom/internal/gateway"
	"loom/internal/permission/approval"
	"loom/pkg/logger"
)

func newServeCommand() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Expose the agent over HTTP: an SSE chat endpoint, a JSON API for
pending approvals and the tool catalogue, and a WebSocket hub. Gate
escalations are parked for connected clients to decide; unanswered
requests time out denied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config

			if host != "" {
				cfg.Gateway.Host = host
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}

			manager := approval.NewManager(&approval.ManagerConfig{
				Timeout: cfg.Permission.ApprovalTimeout,
			})
			defer manager.Close()

			a, err := buildAgent(cmd.Context(), cliCtx, manager)
			if err != nil {
				return err
			}
			defer a.Close()

			server := gateway.NewServer(gateway.Options{
				Config:    cfg.Gateway,
				Version:   Version,
				Approvals: manager,
				Registry:  a.registry,
				Runner:    a.runner,
			})
			manager.SetNotifier(gateway.NewHubNotifier(server.Hub()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Gateway listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down")
			return server.Shutdown(context.Background())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}
