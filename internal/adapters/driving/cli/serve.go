package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/socialrelay/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and maintenance scheduler",
	Long: `Starts the HTTP API (connect, callback, connections and publish endpoints)
together with the maintenance scheduler that purges expired OAuth states and
refreshes expiring tokens. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close: %v", err)
		}
	}()

	configured := a.registry.Configured()
	if len(configured) == 0 {
		logger.Warn("no platform credentials configured; every connect request will fail")
	}
	for _, p := range configured {
		logger.Info("platform %s enabled, redirect URI %s", p, a.connections.RedirectURI(p))
	}

	handlers := httpapi.NewHandlers(a.connections, a.publisher, a.registry, cfg.Server.CallbackRedirect)
	auth := httpapi.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	server := httpapi.NewServer(httpapi.Config{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		TrustProxy:      cfg.Server.TrustProxy,
		Production:      cfg.Server.Production,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handlers, auth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.scheduler.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	return g.Wait()
}
