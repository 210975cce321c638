package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/mcp-kubedebug/internal/cloudwatch"
	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/grafana"
	"github.com/giantswarm/mcp-kubedebug/internal/health"
	"github.com/giantswarm/mcp-kubedebug/internal/kube"
	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
	"github.com/giantswarm/mcp-kubedebug/internal/timeutil"
)

// LogMetricQuerier is the Grafana client surface the debug tools need.
type LogMetricQuerier interface {
	QueryLoki(ctx context.Context, query, start, end string, limit int) (map[string]interface{}, error)
	QueryPrometheus(ctx context.Context, query, start, end, step string) (map[string]interface{}, error)
	HealthCheck(ctx context.Context) grafana.HealthStatus
	Connected() bool
}

// EventLister lists Kubernetes events.
type EventLister interface {
	Events(ctx context.Context, namespace string, since time.Time) ([]kube.Event, error)
}

// ControlPlaneLogLister lists EKS control-plane log events.
type ControlPlaneLogLister interface {
	ClusterEvents(ctx context.Context, cluster string, start, end time.Time) ([]cloudwatch.Event, error)
}

const defaultLogLimit = 1000

// DebugTools bundles the data sources used to debug workloads. The kube and
// cloud clients are optional; operations that need them report their absence
// instead of failing hard.
type DebugTools struct {
	grafana    LogMetricQuerier
	kube       EventLister
	cloud      ControlPlaneLogLister
	settings   *config.Settings
	tracker    *health.Tracker
	aggregator *health.Aggregator
	logger     resilience.Logger
}

// NewDebugTools creates the debugging toolset.
func NewDebugTools(q LogMetricQuerier, events EventLister, cloud ControlPlaneLogLister, settings *config.Settings, tracker *health.Tracker, aggregator *health.Aggregator, logger resilience.Logger) *DebugTools {
	if logger == nil {
		logger = resilience.NopLogger()
	}
	return &DebugTools{
		grafana:    q,
		kube:       events,
		cloud:      cloud,
		settings:   settings,
		tracker:    tracker,
		aggregator: aggregator,
		logger:     logger,
	}
}

// TimeRange is an absolute query window in RFC3339.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LogEntry is one Loki log line, serialized the way Loki streams carry
// values: a two-element [timestamp, line] array.
type LogEntry struct {
	Timestamp string
	Line      string
}

// MarshalJSON renders the entry as Loki's [timestamp, line] pair.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Timestamp, e.Line})
}

// UnmarshalJSON parses Loki's [timestamp, line] pair.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		e.Timestamp = pair[0]
	}
	if len(pair) > 1 {
		e.Line = pair[1]
	}
	return nil
}

// LogStream is one Loki stream with its label set.
type LogStream struct {
	Labels map[string]string `json:"stream,omitempty"`
	Values []LogEntry        `json:"values"`
}

// LogsResult is the outcome of a pod log query.
type LogsResult struct {
	Streams   []LogStream `json:"logs"`
	Query     string      `json:"query"`
	TimeRange TimeRange   `json:"time_range"`
	Error     string      `json:"error,omitempty"`
}

// MetricData holds the series of one metric, or the error that prevented
// querying it.
type MetricData struct {
	Series []json.RawMessage `json:"series,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// MetricsResult is the outcome of a pod metrics query.
type MetricsResult struct {
	Metrics   map[string]MetricData `json:"metrics"`
	TimeRange TimeRange             `json:"time_range"`
	Error     string                `json:"error,omitempty"`
}

// EventsResult is the outcome of a cluster events query.
type EventsResult struct {
	Events    []kube.Event `json:"events"`
	Namespace string       `json:"namespace"`
	TimeRange string       `json:"time_range"`
	Error     string       `json:"error,omitempty"`
}

// CloudWatchResult is the outcome of an EKS control-plane log query.
type CloudWatchResult struct {
	Events      []cloudwatch.Event `json:"events"`
	Cluster     string             `json:"cluster"`
	TimeRange   string             `json:"time_range"`
	TotalEvents int                `json:"total_events"`
	Error       string             `json:"error,omitempty"`
}

// buildLokiQuery builds a LogQL stream selector for a pod, a label
// selector, or a whole namespace.
func buildLokiQuery(namespace, podName, labelSelector string) string {
	switch {
	case podName != "":
		return fmt.Sprintf(`{namespace=%q, pod=%q}`, namespace, podName)
	case labelSelector != "":
		parts := []string{fmt.Sprintf("namespace=%q", namespace)}
		for _, pair := range strings.Split(labelSelector, ",") {
			key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%q", key, value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf(`{namespace=%q}`, namespace)
	}
}

// PodLogs queries Loki for pod logs over the relative time range.
func (d *DebugTools) PodLogs(ctx context.Context, namespace, podName, labelSelector, timeRange string) *LogsResult {
	start, end := timeutil.ParseRange(timeRange)
	return d.podLogsWindow(ctx, namespace, podName, labelSelector, start, end)
}

func (d *DebugTools) podLogsWindow(ctx context.Context, namespace, podName, labelSelector string, start, end time.Time) *LogsResult {
	query := buildLokiQuery(namespace, podName, labelSelector)
	result := &LogsResult{
		Query: query,
		TimeRange: TimeRange{
			Start: timeutil.RFC3339(start),
			End:   timeutil.RFC3339(end),
		},
	}

	raw, err := d.grafana.QueryLoki(ctx, query, result.TimeRange.Start, result.TimeRange.End, defaultLogLimit)
	d.observe("loki", "query_loki", err)
	if err != nil {
		d.logger.Error("loki query failed", "query", query, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Streams = extractStreams(raw)
	return result
}

// metricQueries builds the PromQL queries for one pod or namespace.
func metricQueries(namespace, podName string) map[string]string {
	filter := fmt.Sprintf("namespace=%q", namespace)
	if podName != "" {
		filter = fmt.Sprintf("pod=%q", podName)
	}
	return map[string]string{
		"cpu_usage":    fmt.Sprintf("rate(container_cpu_usage_seconds_total{%s}[5m])", filter),
		"memory_usage": fmt.Sprintf("container_memory_working_set_bytes{%s}", filter),
		"network_rx":   fmt.Sprintf("rate(container_network_receive_bytes_total{%s}[5m])", filter),
		"network_tx":   fmt.Sprintf("rate(container_network_transmit_bytes_total{%s}[5m])", filter),
	}
}

// PodMetrics queries Prometheus for container CPU, memory, and network
// metrics over the relative time range.
func (d *DebugTools) PodMetrics(ctx context.Context, namespace, podName, labelSelector, timeRange string) *MetricsResult {
	start, end := timeutil.ParseRange(timeRange)
	return d.podMetricsWindow(ctx, namespace, podName, start, end)
}

func (d *DebugTools) podMetricsWindow(ctx context.Context, namespace, podName string, start, end time.Time) *MetricsResult {
	result := &MetricsResult{
		Metrics: make(map[string]MetricData),
		TimeRange: TimeRange{
			Start: timeutil.RFC3339(start),
			End:   timeutil.RFC3339(end),
		},
	}

	for name, query := range metricQueries(namespace, podName) {
		raw, err := d.grafana.QueryPrometheus(ctx, query, result.TimeRange.Start, result.TimeRange.End, "30s")
		d.observe("prometheus", "query_prometheus", err)
		if err != nil {
			d.logger.Error("prometheus query failed", "metric", name, "error", err)
			result.Metrics[name] = MetricData{Error: err.Error()}
			continue
		}
		result.Metrics[name] = MetricData{Series: extractSeries(raw)}
	}
	return result
}

// ClusterEvents lists Kubernetes events in the namespace over the relative
// time range.
func (d *DebugTools) ClusterEvents(ctx context.Context, namespace, timeRange string) *EventsResult {
	result := &EventsResult{
		Namespace: namespace,
		TimeRange: timeRange,
	}

	if d.kube == nil {
		result.Error = "Kubernetes client not available"
		return result
	}

	since, _ := timeutil.ParseRange(timeRange)
	events, err := d.kube.Events(ctx, namespace, since)
	d.observe("kubernetes", "list_events", err)
	if err != nil {
		d.logger.Error("event listing failed", "namespace", namespace, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Events = events
	return result
}

// ControlPlaneEvents reads EKS control-plane log events from CloudWatch over
// the relative time range.
func (d *DebugTools) ControlPlaneEvents(ctx context.Context, cluster, timeRange string) *CloudWatchResult {
	result := &CloudWatchResult{
		Cluster:   cluster,
		TimeRange: timeRange,
	}

	if d.cloud == nil {
		result.Error = "CloudWatch client not available"
		return result
	}

	start, end := timeutil.ParseRange(timeRange)
	events, err := d.cloud.ClusterEvents(ctx, cluster, start, end)
	d.observe("cloudwatch", "filter_log_events", err)
	if err != nil {
		d.logger.Error("cloudwatch query failed", "cluster", cluster, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Events = events
	result.TotalEvents = len(events)
	return result
}

// CorrelationInfo identifies what a correlation covers.
type CorrelationInfo struct {
	Namespace          string `json:"namespace"`
	PodName            string `json:"pod_name,omitempty"`
	LabelSelector      string `json:"label_selector,omitempty"`
	TimeRange          string `json:"time_range"`
	IncludesCloudWatch bool   `json:"includes_cloudwatch,omitempty"`
}

// CorrelationResult combines logs, metrics, and events for one workload.
type CorrelationResult struct {
	Correlation CorrelationInfo   `json:"correlation"`
	Logs        *LogsResult       `json:"logs"`
	Metrics     *MetricsResult    `json:"metrics"`
	Events      *EventsResult     `json:"events"`
	CloudWatch  *CloudWatchResult `json:"cloudwatch,omitempty"`
	Summary     Summary           `json:"summary"`
}

// Correlate gathers logs, metrics, and events concurrently and summarizes
// them.
func (d *DebugTools) Correlate(ctx context.Context, namespace, podName, labelSelector, timeRange string) *CorrelationResult {
	return d.correlate(ctx, namespace, podName, labelSelector, timeRange, false)
}

// CorrelateEnhanced additionally pulls EKS control-plane events when a
// cluster name is configured.
func (d *DebugTools) CorrelateEnhanced(ctx context.Context, namespace, podName, labelSelector, timeRange string, includeCloudWatch bool) *CorrelationResult {
	return d.correlate(ctx, namespace, podName, labelSelector, timeRange, includeCloudWatch)
}

func (d *DebugTools) correlate(ctx context.Context, namespace, podName, labelSelector, timeRange string, includeCloudWatch bool) *CorrelationResult {
	result := &CorrelationResult{
		Correlation: CorrelationInfo{
			Namespace:     namespace,
			PodName:       podName,
			LabelSelector: labelSelector,
			TimeRange:     timeRange,
		},
	}

	withCloudWatch := includeCloudWatch && d.settings != nil && d.settings.EKSClusterName != ""

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Logs = d.PodLogs(gctx, namespace, podName, labelSelector, timeRange)
		return nil
	})
	g.Go(func() error {
		result.Metrics = d.PodMetrics(gctx, namespace, podName, labelSelector, timeRange)
		return nil
	})
	g.Go(func() error {
		result.Events = d.ClusterEvents(gctx, namespace, timeRange)
		return nil
	})
	if withCloudWatch {
		g.Go(func() error {
			result.CloudWatch = d.ControlPlaneEvents(gctx, d.settings.EKSClusterName, timeRange)
			return nil
		})
	}
	g.Wait()

	result.Correlation.IncludesCloudWatch = result.CloudWatch != nil
	result.Summary = summarize(result.Logs, result.Events, result.CloudWatch)
	return result
}

// observe feeds the health tracker and error aggregator when they are
// wired.
func (d *DebugTools) observe(service, operation string, err error) {
	if d.tracker != nil {
		d.tracker.Observe(service, err)
	}
	if d.aggregator != nil && err != nil {
		d.aggregator.Record(operation, err)
	}
}

// extractStreams pulls the Loki stream list out of a raw query response.
func extractStreams(raw map[string]interface{}) []LogStream {
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(data["result"])
	if err != nil {
		return nil
	}
	var streams []LogStream
	if err := json.Unmarshal(encoded, &streams); err != nil {
		return nil
	}
	return streams
}

// extractSeries pulls the Prometheus series list out of a raw query
// response, keeping each series opaque.
func extractSeries(raw map[string]interface{}) []json.RawMessage {
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil
	}
	list, ok := data["result"].([]interface{})
	if !ok {
		return nil
	}
	series := make([]json.RawMessage, 0, len(list))
	for _, item := range list {
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		series = append(series, encoded)
	}
	return series
}

// HealthReport is the outcome of a comprehensive health check.
type HealthReport struct {
	Timestamp      string                 `json:"timestamp"`
	OverallHealthy bool                   `json:"overall_healthy"`
	Services       map[string]interface{} `json:"services"`
}

// ServiceReport describes one service's availability.
type ServiceReport struct {
	Connected bool   `json:"connected"`
	Details   string `json:"details"`
}

// HealthCheck probes every configured data source.
func (d *DebugTools) HealthCheck(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		OverallHealthy: true,
		Services:       make(map[string]interface{}),
	}

	grafanaHealth := d.grafana.HealthCheck(ctx)
	report.Services["grafana_mcp"] = grafanaHealth
	if !grafanaHealth.OverallHealthy {
		report.OverallHealthy = false
	}

	k8sAvailable := d.kube != nil
	detail := "Kubernetes API accessible"
	if !k8sAvailable {
		detail = "Kubernetes API not accessible"
		report.OverallHealthy = false
	}
	report.Services["kubernetes"] = ServiceReport{Connected: k8sAvailable, Details: detail}

	cwAvailable := d.cloud != nil
	cwDetail := "CloudWatch client initialized"
	if !cwAvailable {
		cwDetail = "CloudWatch client not available"
	}
	report.Services["cloudwatch"] = ServiceReport{Connected: cwAvailable, Details: cwDetail}

	if d.settings != nil && d.settings.EKSClusterName != "" {
		report.Services["eks_cluster"] = map[string]interface{}{
			"cluster_name": d.settings.EKSClusterName,
			"configured":   true,
		}
	}

	return report
}

// Diagnostics reports aggregated errors, service health, and the active
// configuration.
type Diagnostics struct {
	Timestamp     string                 `json:"timestamp"`
	ErrorSummary  health.Summary         `json:"error_summary"`
	ServiceHealth []health.ServiceStatus `json:"service_health"`
	Configuration map[string]interface{} `json:"configuration"`
}

// SystemDiagnostics returns the current diagnostics snapshot.
func (d *DebugTools) SystemDiagnostics() *Diagnostics {
	diag := &Diagnostics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Configuration: make(map[string]interface{}),
	}

	if d.aggregator != nil {
		diag.ErrorSummary = d.aggregator.Summarize()
	}
	if d.tracker != nil {
		diag.ServiceHealth = d.tracker.Snapshot()
		sort.Slice(diag.ServiceHealth, func(i, j int) bool {
			return diag.ServiceHealth[i].Name < diag.ServiceHealth[j].Name
		})
	}
	if d.settings != nil {
		diag.Configuration = map[string]interface{}{
			"grafana_url":            d.settings.GrafanaURL,
			"aws_region":             d.settings.AWSRegion,
			"aws_profile":            d.settings.AWSProfile,
			"eks_cluster":            d.settings.EKSClusterName,
			"query_timeout":          d.settings.QueryTimeout.Seconds(),
			"max_concurrent_queries": d.settings.MaxConcurrentQueries,
		}
	}
	return diag
}
