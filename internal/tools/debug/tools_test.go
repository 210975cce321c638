package debug

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/mcp-kubedebug/internal/cloudwatch"
	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/grafana"
	"github.com/giantswarm/mcp-kubedebug/internal/health"
	"github.com/giantswarm/mcp-kubedebug/internal/kube"
)

// fakeQuerier plays back canned Loki and Prometheus responses.
type fakeQuerier struct {
	mu          sync.Mutex
	lokiQueries []string
	promQueries []string
	lokiResult  map[string]interface{}
	promResult  map[string]interface{}
	lokiErr     error
	promErr     error
}

func (f *fakeQuerier) QueryLoki(ctx context.Context, query, start, end string, limit int) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lokiQueries = append(f.lokiQueries, query)
	if f.lokiErr != nil {
		return nil, f.lokiErr
	}
	return f.lokiResult, nil
}

func (f *fakeQuerier) QueryPrometheus(ctx context.Context, query, start, end, step string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promQueries = append(f.promQueries, query)
	if f.promErr != nil {
		return nil, f.promErr
	}
	return f.promResult, nil
}

func (f *fakeQuerier) HealthCheck(ctx context.Context) grafana.HealthStatus {
	return grafana.HealthStatus{Connected: true, GrafanaAPI: true, DatasourcesAvailable: true, OverallHealthy: true}
}

func (f *fakeQuerier) Connected() bool { return true }

type fakeEvents struct {
	events []kube.Event
	err    error
}

func (f *fakeEvents) Events(ctx context.Context, namespace string, since time.Time) ([]kube.Event, error) {
	return f.events, f.err
}

type fakeCloud struct {
	events []cloudwatch.Event
	err    error
}

func (f *fakeCloud) ClusterEvents(ctx context.Context, cluster string, start, end time.Time) ([]cloudwatch.Event, error) {
	return f.events, f.err
}

func lokiResponse(lines ...string) map[string]interface{} {
	values := make([]interface{}, 0, len(lines))
	for i, line := range lines {
		values = append(values, []interface{}{fmt.Sprintf("%d", 1700000000000000000+i), line})
	}
	return map[string]interface{}{
		"data": map[string]interface{}{
			"result": []interface{}{
				map[string]interface{}{
					"stream": map[string]interface{}{"namespace": "default"},
					"values": values,
				},
			},
		},
	}
}

func promResponse(seriesCount int) map[string]interface{} {
	series := make([]interface{}, 0, seriesCount)
	for i := 0; i < seriesCount; i++ {
		series = append(series, map[string]interface{}{
			"metric": map[string]interface{}{"pod": fmt.Sprintf("api-%d", i)},
			"values": []interface{}{},
		})
	}
	return map[string]interface{}{
		"data": map[string]interface{}{"result": series},
	}
}

func newTestTools(q *fakeQuerier, events EventLister, cloud ControlPlaneLogLister) *DebugTools {
	settings := &config.Settings{EKSClusterName: "prod-eks"}
	return NewDebugTools(q, events, cloud, settings, health.NewTracker("loki", "prometheus", "kubernetes", "cloudwatch"), health.NewAggregator(), nil)
}

func TestBuildLokiQuery(t *testing.T) {
	tests := []struct {
		name          string
		namespace     string
		podName       string
		labelSelector string
		want          string
	}{
		{
			name:      "pod name",
			namespace: "default",
			podName:   "api-7c9d",
			want:      `{namespace="default", pod="api-7c9d"}`,
		},
		{
			name:          "label selector",
			namespace:     "default",
			labelSelector: "app=myapp,version=v1",
			want:          `{namespace="default", app="myapp", version="v1"}`,
		},
		{
			name:      "namespace only",
			namespace: "kube-system",
			want:      `{namespace="kube-system"}`,
		},
		{
			name:          "pod name wins over labels",
			namespace:     "default",
			podName:       "api-7c9d",
			labelSelector: "app=myapp",
			want:          `{namespace="default", pod="api-7c9d"}`,
		},
		{
			name:          "malformed label pair skipped",
			namespace:     "default",
			labelSelector: "app=myapp,bogus",
			want:          `{namespace="default", app="myapp"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildLokiQuery(tt.namespace, tt.podName, tt.labelSelector)
			if got != tt.want {
				t.Errorf("buildLokiQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPodLogs(t *testing.T) {
	q := &fakeQuerier{lokiResult: lokiResponse("starting up", "error: connection reset")}
	tools := newTestTools(q, nil, nil)

	result := tools.PodLogs(context.Background(), "default", "api-7c9d", "", "1h")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if len(result.Streams) != 1 || len(result.Streams[0].Values) != 2 {
		t.Fatalf("unexpected streams: %+v", result.Streams)
	}
	if result.Streams[0].Values[1].Line != "error: connection reset" {
		t.Errorf("log line = %q", result.Streams[0].Values[1].Line)
	}
	if result.Query != `{namespace="default", pod="api-7c9d"}` {
		t.Errorf("query = %q", result.Query)
	}
}

func TestPodLogsError(t *testing.T) {
	q := &fakeQuerier{lokiErr: fmt.Errorf("loki unavailable")}
	tools := newTestTools(q, nil, nil)

	result := tools.PodLogs(context.Background(), "default", "", "", "1h")
	if result.Error != "loki unavailable" {
		t.Fatalf("error = %q", result.Error)
	}
	if tools.tracker.Healthy("loki") {
		// A single failure should not flip health yet.
		t.Log("loki still healthy after one failure, as expected")
	}
}

func TestPodMetricsRunsAllQueries(t *testing.T) {
	q := &fakeQuerier{promResult: promResponse(2)}
	tools := newTestTools(q, nil, nil)

	result := tools.PodMetrics(context.Background(), "default", "api-7c9d", "", "1h")
	if len(result.Metrics) != 4 {
		t.Fatalf("got %d metrics, want 4", len(result.Metrics))
	}
	for _, name := range []string{"cpu_usage", "memory_usage", "network_rx", "network_tx"} {
		data, ok := result.Metrics[name]
		if !ok {
			t.Fatalf("metric %s missing", name)
		}
		if len(data.Series) != 2 {
			t.Errorf("metric %s has %d series, want 2", name, len(data.Series))
		}
	}

	for _, query := range q.promQueries {
		if !strings.Contains(query, `pod="api-7c9d"`) {
			t.Errorf("query %q does not filter by pod", query)
		}
	}
}

func TestClusterEventsWithoutClient(t *testing.T) {
	tools := newTestTools(&fakeQuerier{}, nil, nil)

	result := tools.ClusterEvents(context.Background(), "default", "1h")
	if result.Error != "Kubernetes client not available" {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestCorrelate(t *testing.T) {
	q := &fakeQuerier{
		lokiResult: lokiResponse("ok", "error: timeout", "exception in handler"),
		promResult: promResponse(1),
	}
	events := &fakeEvents{events: []kube.Event{
		{Name: "backoff", Type: "Warning", Reason: "BackOff"},
		{Name: "pulled", Type: "Normal", Reason: "Pulled"},
	}}
	tools := newTestTools(q, events, nil)

	result := tools.Correlate(context.Background(), "default", "api-7c9d", "", "1h")

	if result.Logs == nil || result.Metrics == nil || result.Events == nil {
		t.Fatal("expected all three sub-results")
	}
	if result.CloudWatch != nil {
		t.Error("plain correlation must not include CloudWatch data")
	}
	if result.Summary.LogEntries != 3 {
		t.Errorf("LogEntries = %d, want 3", result.Summary.LogEntries)
	}
	if result.Summary.ErrorLogs != 2 {
		t.Errorf("ErrorLogs = %d, want 2", result.Summary.ErrorLogs)
	}
	if result.Summary.WarningEvents != 1 {
		t.Errorf("WarningEvents = %d, want 1", result.Summary.WarningEvents)
	}
}

func TestCorrelateEnhancedIncludesCloudWatch(t *testing.T) {
	q := &fakeQuerier{lokiResult: lokiResponse("ok"), promResult: promResponse(1)}
	cloud := &fakeCloud{events: []cloudwatch.Event{
		{Timestamp: time.Now(), Message: "apiserver error: etcd timeout", Cluster: "prod-eks"},
		{Timestamp: time.Now().Add(-2 * time.Hour), Message: "routine sync", Cluster: "prod-eks"},
	}}
	tools := newTestTools(q, &fakeEvents{}, cloud)

	result := tools.CorrelateEnhanced(context.Background(), "default", "api-7c9d", "", "1h", true)
	if result.CloudWatch == nil {
		t.Fatal("expected CloudWatch data")
	}
	if !result.Correlation.IncludesCloudWatch {
		t.Error("IncludesCloudWatch flag not set")
	}
	if result.Summary.CloudWatchEvents != 2 {
		t.Errorf("CloudWatchEvents = %d, want 2", result.Summary.CloudWatchEvents)
	}
	if result.Summary.CloudWatchErrors != 1 {
		t.Errorf("CloudWatchErrors = %d, want 1", result.Summary.CloudWatchErrors)
	}
	if result.Summary.RecentCloudWatch != 1 {
		t.Errorf("RecentCloudWatch = %d, want 1", result.Summary.RecentCloudWatch)
	}
}

func TestCorrelateEnhancedSkipsCloudWatchWhenDisabled(t *testing.T) {
	q := &fakeQuerier{lokiResult: lokiResponse("ok"), promResult: promResponse(1)}
	tools := newTestTools(q, &fakeEvents{}, &fakeCloud{})

	result := tools.CorrelateEnhanced(context.Background(), "default", "", "", "1h", false)
	if result.CloudWatch != nil {
		t.Fatal("CloudWatch data included despite include_cloudwatch=false")
	}
}

func TestHealthCheck(t *testing.T) {
	tools := newTestTools(&fakeQuerier{}, &fakeEvents{}, &fakeCloud{})

	report := tools.HealthCheck(context.Background())
	if !report.OverallHealthy {
		t.Fatalf("expected healthy report: %+v", report)
	}
	if _, ok := report.Services["eks_cluster"]; !ok {
		t.Error("expected eks_cluster entry when cluster name configured")
	}
}

func TestHealthCheckMissingKubernetes(t *testing.T) {
	tools := newTestTools(&fakeQuerier{}, nil, nil)

	report := tools.HealthCheck(context.Background())
	if report.OverallHealthy {
		t.Fatal("report should be unhealthy without a Kubernetes client")
	}
}

func TestSystemDiagnostics(t *testing.T) {
	q := &fakeQuerier{lokiErr: fmt.Errorf("boom")}
	tools := newTestTools(q, nil, nil)

	tools.PodLogs(context.Background(), "default", "", "", "1h")

	diag := tools.SystemDiagnostics()
	if diag.ErrorSummary.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", diag.ErrorSummary.TotalErrors)
	}
	if len(diag.ServiceHealth) == 0 {
		t.Error("expected service health entries")
	}
	if diag.Configuration["eks_cluster"] != "prod-eks" {
		t.Errorf("configuration eks_cluster = %v", diag.Configuration["eks_cluster"])
	}
}
