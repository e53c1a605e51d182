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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/provenance/services/provenance/server"
	"github.com/AleutianAI/provenance/services/provenance/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	srvCfg := server.DefaultConfig()
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP detection service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTelemetry(flushCtx); err != nil {
					fmt.Fprintf(a.stderr, "telemetry shutdown: %v\n", err)
				}
			}()

			d, logger, err := a.detector()
			if err != nil {
				return err
			}
			defer logger.Close()
			defer d.Close()

			srv, err := server.New(d, srvCfg, server.WithLogger(logger.Slog()))
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&srvCfg.Addr, "addr", srvCfg.Addr, "listen address")
	f.Float64Var(&srvCfg.RateLimit, "rate-limit", srvCfg.RateLimit, "detect requests per second, 0 disables")
	f.IntVar(&srvCfg.Burst, "burst", srvCfg.Burst, "rate limiter burst")
	f.Int64Var(&srvCfg.MaxBodyBytes, "max-body", srvCfg.MaxBodyBytes, "maximum request body in bytes")
	f.DurationVar(&srvCfg.ShutdownTimeout, "shutdown-timeout", srvCfg.ShutdownTimeout, "graceful shutdown timeout")
	f.BoolVar(&debug, "debug", false, "gin debug mode")
	return cmd
}
