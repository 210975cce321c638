package debug

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-kubedebug/internal/server"
)

// TestLogger implements server.Logger for testing
type TestLogger struct{}

func (l *TestLogger) Debug(msg string, args ...interface{}) {}
func (l *TestLogger) Info(msg string, args ...interface{})  {}
func (l *TestLogger) Warn(msg string, args ...interface{})  {}
func (l *TestLogger) Error(msg string, args ...interface{}) {}

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()

	sc, err := server.NewServerContext(context.Background(),
		server.WithLogger(&TestLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to create server context: %v", err)
	}
	t.Cleanup(func() { sc.Shutdown() })
	return sc
}

func TestRegisterDebugTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0")
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{}, &fakeEvents{}, &fakeCloud{})

	if err := RegisterDebugTools(s, tools, sc); err != nil {
		t.Fatalf("Failed to register tools: %v", err)
	}
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func TestHandleGetPodLogsRequiresNamespace(t *testing.T) {
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{lokiResult: lokiResponse("ok")}, nil, nil)

	result, err := handleGetPodLogs(context.Background(), callRequest("get_pod_logs", map[string]interface{}{}), tools, sc)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without namespace")
	}
}

func TestHandleGetPodLogsReturnsJSON(t *testing.T) {
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{lokiResult: lokiResponse("error: oom")}, nil, nil)

	result, err := handleGetPodLogs(context.Background(), callRequest("get_pod_logs", map[string]interface{}{
		"namespace": "default",
		"pod_name":  "api-7c9d",
	}), tools, sc)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var decoded LogsResult
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if decoded.Query != `{namespace="default", pod="api-7c9d"}` {
		t.Errorf("query = %q", decoded.Query)
	}
}

func TestHandleGetCloudWatchEventsRequiresCluster(t *testing.T) {
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{}, nil, &fakeCloud{})

	result, err := handleGetCloudWatchEvents(context.Background(), callRequest("get_cloudwatch_events", map[string]interface{}{}), tools, sc)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without cluster_name")
	}
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "cluster_name") {
		t.Errorf("error text %q does not mention cluster_name", text)
	}
}

func TestHandleAnalyzeTimeCorrelationDefaults(t *testing.T) {
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{lokiResult: lokiResponse(), promResult: promResponse(0)}, nil, nil)

	result, err := handleAnalyzeTimeCorrelation(context.Background(), callRequest("analyze_time_correlation", map[string]interface{}{
		"namespace": "default",
		"pod_name":  "api-7c9d",
	}), tools, sc)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var decoded TimeCorrelationResult
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if decoded.Analysis.TimeRange != "2h" || decoded.Analysis.WindowSize != "15m" {
		t.Errorf("defaults = %q / %q", decoded.Analysis.TimeRange, decoded.Analysis.WindowSize)
	}
	if decoded.Analysis.TotalWindows != 8 {
		t.Errorf("TotalWindows = %d, want 8", decoded.Analysis.TotalWindows)
	}
}

func TestHandleEnhancedCorrelationCloudWatchToggle(t *testing.T) {
	sc := newTestServerContext(t)
	tools := newTestTools(&fakeQuerier{lokiResult: lokiResponse("ok"), promResult: promResponse(1)}, &fakeEvents{}, &fakeCloud{})

	result, err := handleEnhancedCorrelation(context.Background(), callRequest("get_enhanced_correlation", map[string]interface{}{
		"namespace":          "default",
		"include_cloudwatch": false,
	}), tools, sc)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var decoded CorrelationResult
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if decoded.CloudWatch != nil {
		t.Error("CloudWatch data present despite include_cloudwatch=false")
	}
}
