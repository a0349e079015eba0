package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wedding-rsvp/internal/server"
	"wedding-rsvp/internal/sheets"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the RSVP HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			deadline, err := cfg.DeadlineTime()
			if err != nil {
				return err
			}
			client := sheets.NewClient(sheets.Config{
				GetURL:  cfg.SheetGetURL,
				PostURL: cfg.SheetPostURL,
				Secret:  cfg.AdminSecret,
				Timeout: cfg.RequestTimeout(),
			}, nil)
			if !client.CanRead() || !client.CanWrite() {
				logger.Warn().Msg("Spreadsheet URLs are not fully configured; affected endpoints will fail")
			}

			if addr == "" {
				addr = cfg.ListenAddr
			}
			httpServer := &http.Server{
				Addr: addr,
				Handler: server.NewServer(client, server.Options{
					Deadline:      deadline,
					AdminPassword: cfg.AdminPassword,
				}, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				logger.Info().Str("addr", addr).Time("deadline", deadline).Msg("RSVP API listening")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info().Msg("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to listen_addr)")
	return cmd
}
