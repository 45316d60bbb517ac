package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tchan1002/apache/internal/delivery/http/handler"
	"github.com/tchan1002/apache/internal/delivery/http/router"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local helper API for a browser UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), e)
		},
	}
	cmd.Flags().String("port", "", "port of the local helper API")
	return cmd
}

func serve(ctx context.Context, e *env) error {
	logger := e.logger
	a, err := newApp(ctx, e, logListener(logger))
	if err != nil {
		return err
	}
	defer a.Close()

	h := handler.NewHandler(a.controller, a.session.ID, logger)
	server := &http.Server{
		Addr:        "127.0.0.1:" + e.cfg.ServerPort,
		Handler:     router.New(h, e.metrics, e.registry, logger),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: /api/scout lasts as long as the crawl.
		IdleTimeout: 120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", server.Addr), zap.String("session_id", a.session.ID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.tab != nil {
		g.Go(func() error {
			if _, err := a.controller.Open(ctx); err != nil {
				logger.Warn("could not read the active tab", zap.Error(err))
			}
			navigations, err := a.tab.Navigations(ctx)
			if err != nil {
				return err
			}
			if err := a.controller.Watch(ctx, navigations); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server exiting")
	return nil
}
