package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/mcpserver"
	"github.com/newtron-network/omnigate/pkg/util"
)

const shutdownTimeout = 10 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP endpoint over HTTP",
	Long: `Serve every operation as an MCP tool.

The bearer token is read from the environment variable named by
server.bearer_token_env (default OMNIGATE_TOKEN). Without it the endpoint
accepts unauthenticated requests, so keep server.listen on loopback.

Examples:
  OMNIGATE_TOKEN=s3cret omnigate serve
  omnigate serve --listen 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := app.openGateway()
		if err != nil {
			return err
		}
		defer gw.Close()

		cfg := app.cfg.Server
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		token := os.Getenv(cfg.BearerTokenEnv)
		mcp := mcpserver.NewServer(gw.orch, gw.orch.Registry(), token)

		mux := http.NewServeMux()
		mux.HandleFunc(cfg.Path, mcp.GetHTTPHandler())
		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			util.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				util.Warnf("Shutdown: %v", err)
			}
		}()

		util.WithFields(map[string]interface{}{
			"listen": cfg.Listen,
			"path":   cfg.Path,
		}).Info("Starting omnigate server")
		mcp.LogStartup()

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", cfg.Listen, err)
		}
		util.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
}
