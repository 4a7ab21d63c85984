package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/urpt/student-rotation-service/internal/handlers"
	"github.com/urpt/student-rotation-service/internal/utils"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the daily cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			logger := utils.NewSlogLogger(a.logger)
			hm := handlers.NewHandlerManager(a.services, a.jwt, logger, handlers.RouterOptions{
				MaxUploadBytes: a.cfg.Import.MaxUploadBytes,
				Gatherer:       a.registry,
				Ping:           a.repo.Ping,
			})
			server := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           handlers.NewRouter(hm, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gCtx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.logger.Info("HTTP server listening", "addr", server.Addr, "environment", a.cfg.Environment)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
				defer cancel()
				a.logger.Info("Shutting down HTTP server")
				return server.Shutdown(shutdownCtx)
			})

			if a.cfg.Cleanup.Enabled {
				g.Go(func() error {
					return a.services.Cleanup.Start(gCtx, a.cfg.Cleanup.Interval)
				})
			}

			return g.Wait()
		},
	}
}
