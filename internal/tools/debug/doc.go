// Package debug provides MCP tools for debugging Kubernetes workloads.
//
// This package implements the following MCP tools:
//
// Data Tools:
//   - get_pod_logs: Query pod logs from Loki via Grafana
//   - get_pod_metrics: Query container CPU, memory, and network metrics
//   - get_cluster_events: List Kubernetes events for a namespace
//   - get_cloudwatch_events: Read EKS control plane logs from CloudWatch
//
// Correlation Tools:
//   - correlate_pod_data: Combine logs, metrics, and events for one workload
//   - get_enhanced_correlation: Correlation including CloudWatch data
//   - analyze_time_correlation: Sliding window analysis with anomaly and
//     trend detection
//
// Operational Tools:
//   - comprehensive_health_check: Probe all configured data sources
//   - get_system_diagnostics: Aggregated errors, service health, and
//     configuration
//
// Relative time ranges use the Prometheus duration syntax ("30m", "1h",
// "2d"). Label selectors use the Kubernetes key=value form and are
// converted to LogQL stream selectors.
//
// Example tool usage:
//
//	get_pod_logs: {"namespace": "default", "pod_name": "api-7c9d", "time_range": "1h"}
//	correlate_pod_data: {"namespace": "default", "label_selector": "app=api"}
//	analyze_time_correlation: {"namespace": "default", "pod_name": "api-7c9d", "time_range": "2h", "window_size": "15m"}
package debug
