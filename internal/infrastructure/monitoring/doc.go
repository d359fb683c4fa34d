/*
Package monitoring provides Prometheus metrics for the host.

# Overview

Each Metrics value owns a prometheus.Registry, so the exposition endpoint
shows exactly the collectors of one host. Besides HTTP and WebSocket
traffic it tracks live PTY sessions, running streaming processes, spawn
outcomes and the events emitted per source and kind.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "terminal.spawn")
	// ... execute the tool ...
	timer.Stop("success")

# Metrics

	ptyhost_http_requests_total{method,path,status}
	ptyhost_http_request_duration_seconds{method,path}
	ptyhost_tool_calls_total{tool,status}
	ptyhost_terminal_sessions_active
	ptyhost_processes_active
	ptyhost_spawns_total{source,status}
	ptyhost_events_total{source,kind}
	ptyhost_ws_connections
	ptyhost_ws_messages_total{direction,type}
	ptyhost_uptime_seconds
*/
package monitoring
