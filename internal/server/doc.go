// Package server provides the core server infrastructure for the MCP
// Kubernetes debugging server.
//
// This package contains:
// - ServerContext: Configuration and shared resources management
// - Logger interface: Structured logging abstraction
// - Configuration options: Functional options pattern for server setup
//
// The ServerContext manages the lifecycle of the server and provides
// thread-safe access to shared resources such as:
// - Debug mode toggle
// - Application settings
// - The resilient call executor shared by all outbound queries
// - Service health tracking and error aggregation
//
// Example usage:
//
//	ctx := context.Background()
//	serverContext, err := server.NewServerContext(ctx,
//	    server.WithDebugMode(true),
//	    server.WithLogger(logger),
//	    server.WithSettings(settings),
//	)
package server
