// Package resilience wraps outbound calls to the services mcp-kubedebug
// depends on (the Grafana MCP server, the Kubernetes API, CloudWatch) with
// a per-request timeout, bounded exponential-backoff retries, and a shared
// concurrency ceiling.
//
// The Executor is the shared resource: it owns the permit pool that caps
// the number of in-flight calls across the whole process, the retry policy,
// and the optional circuit breaker and rate limiter. It is constructed once
// at startup and passed to every component that issues calls.
//
// Failure classification:
//   - connection errors and timeouts: transient, retried
//   - 5xx and 429 responses: transient, retried
//   - other 4xx (auth, validation): fatal, never retried
//   - anything unclassified: fatal by default
//
// Transient failures are retried inside Do and never surface to the caller
// unless the attempt ceiling is reached, at which point the caller receives
// an *ExhaustedError carrying the attempt count and the last failure. Fatal
// failures propagate immediately, unmodified.
package resilience
