package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kcmvp/orderdesk/cmd/internal"
	"github.com/kcmvp/orderdesk/web"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// New returns the serve command. It initializes the schema once, then serves
// until SIGINT or SIGTERM and drains in-flight requests before returning.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the order form and the JSON API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := internal.FromContext(cmd.Context())
			if err := rt.Config.BindPFlag("server.engine", cmd.Flags().Lookup("engine")); err != nil {
				return err
			}
			if err := rt.Config.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			engine := rt.Config.GetString("server.engine")
			addr := fmt.Sprintf(":%d", rt.Config.GetInt("server.port"))

			st, err := rt.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			h := web.NewHandler(rt.Service(st), web.OptionsFrom(rt.Config), rt.Logger)
			srv, err := internal.NewServer(engine, h)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				rt.Logger.Info().Str("engine", engine).Str("addr", addr).Msg("server starting")
				errCh <- srv.Serve(addr)
			}()

			select {
			case err = <-errCh:
				return err
			case <-ctx.Done():
			}
			rt.Logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err = srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			rt.Logger.Info().Msg("server exited")
			return nil
		},
	}
	cmd.Flags().String("engine", "gin", "HTTP engine: gin, echo or fiber")
	cmd.Flags().Int("port", 8585, "port to listen on")
	return cmd
}
