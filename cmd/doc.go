// Package cmd provides the command-line interface for mcp-kubedebug.
//
// This package implements the Cobra CLI framework to provide commands for:
// - Starting the MCP debugging server with various transport options (stdio, sse, http)
// - Debugging pods and label-selected workloads against a running server
// - Analyzing namespace activity and historical data for terminated pods
// - Checking server and data source health
// - Inspecting the effective configuration
//
// The main entry point is the serve command, which starts the MCP server,
// connects to the Grafana MCP server, and registers the debugging tools
// for logs, metrics, events, and cross-source correlation.
//
// Environment Variables:
//   - GRAFANA_URL: Required Grafana base URL
//   - GRAFANA_API_KEY: Grafana service account token (GRAFANA_TOKEN also accepted)
//   - AWS_REGION, AWS_PROFILE: Optional CloudWatch access configuration
//   - EKS_CLUSTER_NAME: Optional EKS cluster for control plane logs
//   - QUERY_TIMEOUT, MAX_CONCURRENT_QUERIES, MAX_RETRY_ATTEMPTS, RETRY_DELAY:
//     Resilience tuning for outbound queries
//
// Example usage:
//
//	mcp-kubedebug serve --transport streamable-http --http-addr :8000
//	mcp-kubedebug debug default api-7c9d --time 1h
//	mcp-kubedebug labels default app=api,version=v2
//	mcp-kubedebug health --server http://localhost:8000/mcp
package cmd
