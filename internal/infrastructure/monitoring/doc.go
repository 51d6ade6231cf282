/*
Package monitoring provides metrics collection for workers and the host.

# Overview

This package implements Prometheus-based metrics collection, tracking
running contexts, protocol messages on both sides of a channel, capability
calls and host HTTP requests. Every recording method accepts a nil
receiver, so components can run without metrics.

# Usage

	// Create metrics collector on a registry
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record worker activity
	metrics.WorkerStarted("local")
	metrics.MessageSent(monitoring.SideCreator)

	// Time capability calls
	timer := monitoring.NewTimer(metrics, "fetch")
	// ... perform call ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
