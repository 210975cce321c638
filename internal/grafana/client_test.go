package grafana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

// fakeSession records tool calls and plays back canned responses.
type fakeSession struct {
	calls     []mcp.CallToolRequest
	responses map[string]string
	failUntil int
	tools     []mcp.Tool
	closed    bool
}

func (f *fakeSession) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (f *fakeSession) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, request)
	if len(f.calls) <= f.failUntil {
		return nil, errors.New("broken pipe")
	}
	text := f.responses[request.Params.Name]
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}, nil
}

func (f *fakeSession) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newTestClient(t *testing.T, sess session) *Client {
	t.Helper()

	settings, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	settings.GrafanaURL = "http://grafana.test:3000"
	settings.QueryTimeout = 5 * time.Second

	policy := resilience.DefaultRetryPolicy()
	policy.BaseDelay = time.Millisecond
	executor := resilience.NewExecutor(2, policy)

	c := NewClient(settings, executor, nil)
	c.session = sess
	c.connected = true
	return c
}

func TestQueryLoki(t *testing.T) {
	sess := &fakeSession{responses: map[string]string{
		"loki_query": `{"data":{"result":[{"values":[["1700000000","error: oom"]]}]}}`,
	}}
	c := newTestClient(t, sess)

	result, err := c.QueryLoki(context.Background(), `{namespace="default"}`, "2024-01-01T00:00:00Z", "2024-01-01T01:00:00Z", 100)
	if err != nil {
		t.Fatalf("QueryLoki() error = %v", err)
	}
	if result["data"] == nil {
		t.Fatal("expected data key in decoded result")
	}

	if len(sess.calls) != 1 {
		t.Fatalf("tool called %d times, want 1", len(sess.calls))
	}
	args := sess.calls[0].Params.Arguments.(map[string]interface{})
	if args["query"] != `{namespace="default"}` {
		t.Errorf("query argument = %v", args["query"])
	}
	if args["limit"] != 100 {
		t.Errorf("limit argument = %v", args["limit"])
	}
}

func TestQueryPrometheusDefaultStep(t *testing.T) {
	sess := &fakeSession{responses: map[string]string{
		"prometheus_query": `{"status":"success"}`,
	}}
	c := newTestClient(t, sess)

	if _, err := c.QueryPrometheus(context.Background(), "up", "now-1h", "now", ""); err != nil {
		t.Fatalf("QueryPrometheus() error = %v", err)
	}

	args := sess.calls[0].Params.Arguments.(map[string]interface{})
	if args["step"] != "30s" {
		t.Errorf("step argument = %v, want default 30s", args["step"])
	}
}

func TestCallToolRetriesTransportErrors(t *testing.T) {
	sess := &fakeSession{
		failUntil: 2,
		responses: map[string]string{"list_datasources": `[{"type":"loki"}]`},
	}
	c := newTestClient(t, sess)

	datasources, err := c.ListDatasources(context.Background())
	if err != nil {
		t.Fatalf("ListDatasources() error = %v", err)
	}
	if len(datasources) != 1 {
		t.Fatalf("got %d datasources, want 1", len(datasources))
	}
	if len(sess.calls) != 3 {
		t.Fatalf("tool called %d times, want 3 (two failures then success)", len(sess.calls))
	}
}

func TestCallToolNotConnected(t *testing.T) {
	c := newTestClient(t, &fakeSession{})
	c.connected = false
	c.session = nil

	_, err := c.ListDatasources(context.Background())
	var fatal *resilience.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError when not connected, got %v", err)
	}
}

func TestConnectRequiresAPIKey(t *testing.T) {
	c := newTestClient(t, nil)
	c.connected = false
	c.session = nil
	c.settings.GrafanaAPIKey = ""
	c.settings.GrafanaToken = ""

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error when no Grafana credential is configured")
	}
	if c.Connected() {
		t.Error("client reports connected after failed Connect")
	}
}

func TestHealthCheck(t *testing.T) {
	sess := &fakeSession{responses: map[string]string{
		"list_datasources": `[{"type":"loki"},{"type":"prometheus"},{"type":"prometheus"}]`,
	}}
	c := newTestClient(t, sess)

	status := c.HealthCheck(context.Background())
	if !status.OverallHealthy {
		t.Fatalf("expected healthy status, got %+v", status)
	}
	if status.LokiDatasources != 1 || status.PrometheusDatasources != 2 {
		t.Errorf("datasource counts = %d loki / %d prometheus", status.LokiDatasources, status.PrometheusDatasources)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := newTestClient(t, &fakeSession{})
	c.connected = false

	status := c.HealthCheck(context.Background())
	if status.OverallHealthy || status.Connected {
		t.Fatalf("expected unhealthy disconnected status, got %+v", status)
	}
}

func TestAvailableTools(t *testing.T) {
	sess := &fakeSession{tools: []mcp.Tool{
		{Name: "loki_query", Description: "Query Loki"},
		{Name: "prometheus_query", Description: "Query Prometheus"},
	}}
	c := newTestClient(t, sess)

	tools, err := c.AvailableTools(context.Background())
	if err != nil {
		t.Fatalf("AvailableTools() error = %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "loki_query" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestClose(t *testing.T) {
	sess := &fakeSession{}
	c := newTestClient(t, sess)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
	if c.Connected() {
		t.Error("client still reports connected")
	}
}
