// Package debugger is the CLI side of mcp-kubedebug: a streamable HTTP MCP
// client plus terminal rendering for debugging sessions.
package debugger

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-kubedebug/internal/tools/debug"
)

// toolCaller is the MCP client surface the debugger needs. Tests substitute
// a fake.
type toolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Client calls debugging tools on a running mcp-kubedebug server.
type Client struct {
	caller toolCaller
}

// Connect dials the server's streamable HTTP endpoint and initializes the
// MCP session.
func Connect(ctx context.Context, serverURL string) (*Client, error) {
	mc, err := mcpclient.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", serverURL, err)
	}

	if err := mc.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "mcp-kubedebug-cli",
		Version: "dev",
	}

	if _, err := mc.Initialize(ctx, initRequest); err != nil {
		mc.Close()
		return nil, fmt.Errorf("failed to initialize MCP session with %s: %w", serverURL, err)
	}

	return &Client{caller: mc}, nil
}

// Close shuts down the MCP session.
func (c *Client) Close() error {
	return c.caller.Close()
}

// callTool invokes one tool and decodes its JSON text payload into out.
func (c *Client) callTool(ctx context.Context, name string, arguments map[string]interface{}, out interface{}) error {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = arguments

	result, err := c.caller.CallTool(ctx, request)
	if err != nil {
		return fmt.Errorf("tool %s failed: %w", name, err)
	}

	text := ""
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}

	if result.IsError {
		return fmt.Errorf("tool %s failed: %s", name, text)
	}
	if out == nil || text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}

// CorrelatePodData runs the correlate_pod_data tool.
func (c *Client) CorrelatePodData(ctx context.Context, namespace, podName, labelSelector, timeRange string) (*debug.CorrelationResult, error) {
	arguments := map[string]interface{}{
		"namespace":  namespace,
		"time_range": timeRange,
	}
	if podName != "" {
		arguments["pod_name"] = podName
	}
	if labelSelector != "" {
		arguments["label_selector"] = labelSelector
	}

	var result debug.CorrelationResult
	if err := c.callTool(ctx, "correlate_pod_data", arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PodLogs runs the get_pod_logs tool.
func (c *Client) PodLogs(ctx context.Context, namespace, timeRange string) (*debug.LogsResult, error) {
	var result debug.LogsResult
	err := c.callTool(ctx, "get_pod_logs", map[string]interface{}{
		"namespace":  namespace,
		"time_range": timeRange,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PodMetrics runs the get_pod_metrics tool.
func (c *Client) PodMetrics(ctx context.Context, namespace, timeRange string) (*debug.MetricsResult, error) {
	var result debug.MetricsResult
	err := c.callTool(ctx, "get_pod_metrics", map[string]interface{}{
		"namespace":  namespace,
		"time_range": timeRange,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClusterEvents runs the get_cluster_events tool.
func (c *Client) ClusterEvents(ctx context.Context, namespace, timeRange string) (*debug.EventsResult, error) {
	var result debug.EventsResult
	err := c.callTool(ctx, "get_cluster_events", map[string]interface{}{
		"namespace":  namespace,
		"time_range": timeRange,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeTimeCorrelation runs the analyze_time_correlation tool.
func (c *Client) AnalyzeTimeCorrelation(ctx context.Context, namespace, podName, timeRange, windowSize string) (*debug.TimeCorrelationResult, error) {
	var result debug.TimeCorrelationResult
	err := c.callTool(ctx, "analyze_time_correlation", map[string]interface{}{
		"namespace":   namespace,
		"pod_name":    podName,
		"time_range":  timeRange,
		"window_size": windowSize,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck runs the comprehensive_health_check tool.
func (c *Client) HealthCheck(ctx context.Context) (*debug.HealthReport, error) {
	var report debug.HealthReport
	if err := c.callTool(ctx, "comprehensive_health_check", map[string]interface{}{}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
