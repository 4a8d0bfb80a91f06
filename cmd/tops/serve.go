package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/cli"
	httpAdapter "github.com/aretw0/tops/pkg/adapters/http"
	"github.com/aretw0/tops/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the HTTP server",
	Long:  `Exposes the chart and its persisted sessions as a JSON API, with server-sent events per session and Prometheus metrics.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setupChart(cmd, args)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		metrics := observability.NewMetrics()
		engine, closeFn, err := cli.CreateEngine(cfg, cli.EngineOptions{Logger: logger, Metrics: metrics})
		if err != nil {
			fmt.Printf("Error initializing tops: %v\n", err)
			os.Exit(1)
		}
		defer closeFn()

		handler, err := httpAdapter.NewHandler(engine.Sessions(),
			httpAdapter.WithVersion(tops.Version),
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithLogger(logger),
		)
		if err != nil {
			fmt.Printf("Error loading API: %v\n", err)
			os.Exit(1)
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting tops server on %s\n", srv.Addr)
			fmt.Printf("Serving chart from: %s (root %q)\n", cfg.Chart.Dir, engine.Root())
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("tops server stopped gracefully")
		}
	},
}

func init() {
	chartCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default: server.addr from the configuration)")
}
