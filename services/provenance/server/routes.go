// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers every route on router.
func SetupRoutes(router *gin.Engine, s *Server) {
	gatherers := prometheus.Gatherers{s.registry, prometheus.DefaultGatherer}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/health", s.handleHealth)

		detect := v1.Group("/detect", s.rateLimit(), s.limitBody())
		{
			detect.POST("", s.handleDetect)
			detect.POST("/batch", s.handleBatch)
		}

		v1.GET("/metrics", s.handleMetrics)
		v1.DELETE("/metrics", s.handleResetMetrics)
	}
}
