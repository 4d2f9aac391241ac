package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"auto_blog_publisher/server"
)

func NewServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the post history and previews over HTTP",
		Long:  "Starts a read-only HTTP server. Previews are generated on request and never published.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(root.configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			orch, store, err := a.orchestrator(ctx, false)
			if err != nil {
				return err
			}
			srv, err := server.New(store, orch, a.cfg.Pipeline.CallTimeout*2, a.log.Named("server"))
			if err != nil {
				return err
			}

			listen := a.cfg.Server.Addr
			if addr != "" {
				listen = addr
			}
			httpServer := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Infow("starting web server", "addr", listen)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				a.log.Infow("shutting down web server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
