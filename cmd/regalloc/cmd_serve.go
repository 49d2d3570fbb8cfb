// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/driver"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/AleutianAI/regalloc/services/regalloc/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the allocation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}
			return a.serve(cmd.Context(), port, debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "gin debug mode and request logging")
	return cmd
}

func (a *app) serve(ctx context.Context, port int, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.FromConfig(a.cfg.Telemetry)
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewGlobalMetrics()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	logger := a.logger.Slog()
	opts := []regalloc.ServiceOption{
		regalloc.WithDriver(driver.New(
			driver.WithLogger(logger.With(slog.String("component", "driver"))),
			driver.WithMetrics(metrics),
		)),
		regalloc.WithServiceLogger(logger.With(slog.String("component", "regalloc"))),
	}
	if a.cfg.Storage.Enabled {
		db, err := storage.Open(storage.FromConfig(a.cfg.Storage, logger.With(slog.String("component", "badger"))))
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, regalloc.WithStore(storage.NewRunStore(db)))
	}
	svc := regalloc.NewService(serviceConfig(a.cfg.Run), opts...)

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(svc, tcfg.ServiceName, debug)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("regalloc server listening",
			slog.String("addr", srv.Addr),
			slog.Bool("storage", svc.StorageEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter mounts the allocation API under /v1 and, when the Prometheus
// exporter is active, the /metrics endpoint.
func newRouter(svc *regalloc.Service, serviceName string, requestLog bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if requestLog {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware(serviceName))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	regalloc.RegisterRoutes(v1, regalloc.NewHandlers(svc))
	return router
}
