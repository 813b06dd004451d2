package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/internal/devserver"
)

var (
	port      int
	seedUsers []string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory development backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev := devserver.New(devserver.WithRequestLogging(), devserver.WithLogger(logger))
		for _, spec := range seedUsers {
			email, password, ok := strings.Cut(spec, ":")
			if !ok || email == "" || password == "" {
				return fmt.Errorf("--user must be email:password, got %q", spec)
			}
			dev.AddUser(email, password, "", "")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           dev,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "Development backend listening on port %d (%d users)...\n", port, len(seedUsers))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	devserverCmd.Flags().StringArrayVar(&seedUsers, "user", nil, "Seed an account as email:password (repeatable)")
}
