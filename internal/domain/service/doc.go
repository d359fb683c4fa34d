// Package service provides the tool registry that fronts the providers.
//
// Each provider (terminal, process, environment, system) describes itself
// with a types.Service listing its tools. The registry routes a tool ID of
// the form service.tool to the provider that declared it, so the generic
// POST /services/execute endpoint and the typed endpoints share one
// implementation.
//
// Features:
//   - Thread-safe registration; a service ID can be registered once
//   - Category filtering and keyword discovery
//   - Rejection of tools a service does not declare
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminal.NewProvider(mgr))
//	result, err := registry.Execute(ctx, "terminal.list", nil)
package service
