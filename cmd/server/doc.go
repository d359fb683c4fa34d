// Package main is the entry point for the ptyhost server.
//
// ptyhost runs interactive shells on pseudo-terminals and one-shot commands
// for a desktop terminal UI, streaming their output over a WebSocket.
//
// Architecture:
//
//	Desktop UI → REST (/terminals, /processes, /services) → Host → PTY sessions
//	           ← WebSocket (/stream) ← event hub ←────────────── child processes
//
// Configuration:
//   - Environment variables (SERVER_PORT or PORT, TERMINAL_SHELL, ...)
//   - CLI flags (override env vars)
//   - Defaults for local development, bound to 127.0.0.1
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, killing every live session
package main
