package debug

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-kubedebug/internal/server"
)

// RegisterDebugTools registers the Kubernetes debugging tools with the MCP
// server
func RegisterDebugTools(s *mcpserver.MCPServer, tools *DebugTools, sc *server.ServerContext) error {
	// get_pod_logs tool
	getPodLogsTool := mcp.NewTool("get_pod_logs",
		mcp.WithDescription("Get pod logs from Loki via Grafana"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Kubernetes namespace"),
		),
		mcp.WithString("pod_name",
			mcp.Description("Pod name (optional)"),
		),
		mcp.WithString("label_selector",
			mcp.Description("Label selector, e.g. app=myapp,version=v1 (optional)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range, e.g. 30m, 1h, 2d (default: 1h)"),
		),
	)

	s.AddTool(getPodLogsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetPodLogs(ctx, request, tools, sc)
	})

	// get_pod_metrics tool
	getPodMetricsTool := mcp.NewTool("get_pod_metrics",
		mcp.WithDescription("Get pod CPU, memory, and network metrics from Prometheus via Grafana"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Kubernetes namespace"),
		),
		mcp.WithString("pod_name",
			mcp.Description("Pod name (optional)"),
		),
		mcp.WithString("label_selector",
			mcp.Description("Label selector (optional)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range (default: 1h)"),
		),
	)

	s.AddTool(getPodMetricsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetPodMetrics(ctx, request, tools, sc)
	})

	// get_cluster_events tool
	getClusterEventsTool := mcp.NewTool("get_cluster_events",
		mcp.WithDescription("Get Kubernetes events for a namespace"),
		mcp.WithString("namespace",
			mcp.Description("Kubernetes namespace (default: default)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range (default: 1h)"),
		),
	)

	s.AddTool(getClusterEventsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetClusterEvents(ctx, request, tools, sc)
	})

	// correlate_pod_data tool
	correlateTool := mcp.NewTool("correlate_pod_data",
		mcp.WithDescription("Correlate logs, metrics, and events for comprehensive pod debugging"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Kubernetes namespace"),
		),
		mcp.WithString("pod_name",
			mcp.Description("Pod name (optional)"),
		),
		mcp.WithString("label_selector",
			mcp.Description("Label selector (optional)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range (default: 1h)"),
		),
	)

	s.AddTool(correlateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCorrelate(ctx, request, tools, sc)
	})

	// get_cloudwatch_events tool
	getCloudWatchEventsTool := mcp.NewTool("get_cloudwatch_events",
		mcp.WithDescription("Get EKS control plane events from CloudWatch Logs"),
		mcp.WithString("cluster_name",
			mcp.Required(),
			mcp.Description("EKS cluster name"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range (default: 1h)"),
		),
	)

	s.AddTool(getCloudWatchEventsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetCloudWatchEvents(ctx, request, tools, sc)
	})

	// get_enhanced_correlation tool
	enhancedCorrelationTool := mcp.NewTool("get_enhanced_correlation",
		mcp.WithDescription("Correlate pod data including EKS control plane events from CloudWatch"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Kubernetes namespace"),
		),
		mcp.WithString("pod_name",
			mcp.Description("Pod name (optional)"),
		),
		mcp.WithString("label_selector",
			mcp.Description("Label selector (optional)"),
		),
		mcp.WithString("time_range",
			mcp.Description("Relative time range (default: 1h)"),
		),
		mcp.WithBoolean("include_cloudwatch",
			mcp.Description("Include CloudWatch data (default: true)"),
		),
	)

	s.AddTool(enhancedCorrelationTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleEnhancedCorrelation(ctx, request, tools, sc)
	})

	// analyze_time_correlation tool
	analyzeTool := mcp.NewTool("analyze_time_correlation",
		mcp.WithDescription("Analyze pod logs and metrics across sliding time windows"),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("Kubernetes namespace"),
		),
		mcp.WithString("pod_name",
			mcp.Required(),
			mcp.Description("Pod name"),
		),
		mcp.WithString("time_range",
			mcp.Description("Total time range to analyze (default: 2h)"),
		),
		mcp.WithString("window_size",
			mcp.Description("Window size, e.g. 15m (default: 15m)"),
		),
	)

	s.AddTool(analyzeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAnalyzeTimeCorrelation(ctx, request, tools, sc)
	})

	// comprehensive_health_check tool
	healthCheckTool := mcp.NewTool("comprehensive_health_check",
		mcp.WithDescription("Check the health of all configured data sources"),
	)

	s.AddTool(healthCheckTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(tools.HealthCheck(ctx))
	})

	// get_system_diagnostics tool
	diagnosticsTool := mcp.NewTool("get_system_diagnostics",
		mcp.WithDescription("Get system diagnostics, aggregated errors, and configuration"),
	)

	s.AddTool(diagnosticsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(tools.SystemDiagnostics())
	})

	return nil
}

// requestParams extracts the argument map from a tool call
func requestParams(request mcp.CallToolRequest) map[string]interface{} {
	params := make(map[string]interface{})
	if request.Params.Arguments != nil {
		if argsMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			params = argsMap
		}
	}
	return params
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	if value, ok := params[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: fmt.Sprintf(format, args...),
			},
		},
	}
}

// jsonResult renders any value as a JSON text content block
func jsonResult(value interface{}) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: %v", err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(encoded),
			},
		},
	}, nil
}

// handleGetPodLogs handles the get_pod_logs tool
func handleGetPodLogs(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace, ok := params["namespace"].(string)
	if !ok || namespace == "" {
		return errorResult("Error: namespace parameter is required and must be a string"), nil
	}

	podName := stringParam(params, "pod_name", "")
	labelSelector := stringParam(params, "label_selector", "")
	timeRange := stringParam(params, "time_range", "1h")

	sc.Logger().Debug("Querying pod logs", "namespace", namespace, "pod", podName, "time_range", timeRange)

	return jsonResult(tools.PodLogs(ctx, namespace, podName, labelSelector, timeRange))
}

// handleGetPodMetrics handles the get_pod_metrics tool
func handleGetPodMetrics(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace, ok := params["namespace"].(string)
	if !ok || namespace == "" {
		return errorResult("Error: namespace parameter is required and must be a string"), nil
	}

	podName := stringParam(params, "pod_name", "")
	labelSelector := stringParam(params, "label_selector", "")
	timeRange := stringParam(params, "time_range", "1h")

	sc.Logger().Debug("Querying pod metrics", "namespace", namespace, "pod", podName, "time_range", timeRange)

	return jsonResult(tools.PodMetrics(ctx, namespace, podName, labelSelector, timeRange))
}

// handleGetClusterEvents handles the get_cluster_events tool
func handleGetClusterEvents(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace := stringParam(params, "namespace", "default")
	timeRange := stringParam(params, "time_range", "1h")

	sc.Logger().Debug("Listing cluster events", "namespace", namespace, "time_range", timeRange)

	return jsonResult(tools.ClusterEvents(ctx, namespace, timeRange))
}

// handleCorrelate handles the correlate_pod_data tool
func handleCorrelate(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace, ok := params["namespace"].(string)
	if !ok || namespace == "" {
		return errorResult("Error: namespace parameter is required and must be a string"), nil
	}

	podName := stringParam(params, "pod_name", "")
	labelSelector := stringParam(params, "label_selector", "")
	timeRange := stringParam(params, "time_range", "1h")

	sc.Logger().Debug("Correlating pod data", "namespace", namespace, "pod", podName, "time_range", timeRange)

	return jsonResult(tools.Correlate(ctx, namespace, podName, labelSelector, timeRange))
}

// handleGetCloudWatchEvents handles the get_cloudwatch_events tool
func handleGetCloudWatchEvents(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	cluster, ok := params["cluster_name"].(string)
	if !ok || cluster == "" {
		return errorResult("Error: cluster_name parameter is required and must be a string"), nil
	}

	timeRange := stringParam(params, "time_range", "1h")

	sc.Logger().Debug("Querying CloudWatch events", "cluster", cluster, "time_range", timeRange)

	return jsonResult(tools.ControlPlaneEvents(ctx, cluster, timeRange))
}

// handleEnhancedCorrelation handles the get_enhanced_correlation tool
func handleEnhancedCorrelation(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace, ok := params["namespace"].(string)
	if !ok || namespace == "" {
		return errorResult("Error: namespace parameter is required and must be a string"), nil
	}

	podName := stringParam(params, "pod_name", "")
	labelSelector := stringParam(params, "label_selector", "")
	timeRange := stringParam(params, "time_range", "1h")

	includeCloudWatch := true
	if value, ok := params["include_cloudwatch"].(bool); ok {
		includeCloudWatch = value
	}

	sc.Logger().Debug("Running enhanced correlation", "namespace", namespace, "pod", podName, "cloudwatch", includeCloudWatch)

	return jsonResult(tools.CorrelateEnhanced(ctx, namespace, podName, labelSelector, timeRange, includeCloudWatch))
}

// handleAnalyzeTimeCorrelation handles the analyze_time_correlation tool
func handleAnalyzeTimeCorrelation(ctx context.Context, request mcp.CallToolRequest, tools *DebugTools, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	namespace, ok := params["namespace"].(string)
	if !ok || namespace == "" {
		return errorResult("Error: namespace parameter is required and must be a string"), nil
	}

	podName, ok := params["pod_name"].(string)
	if !ok || podName == "" {
		return errorResult("Error: pod_name parameter is required and must be a string"), nil
	}

	timeRange := stringParam(params, "time_range", "2h")
	windowSize := stringParam(params, "window_size", "15m")

	sc.Logger().Debug("Analyzing time correlation", "namespace", namespace, "pod", podName, "time_range", timeRange, "window_size", windowSize)

	return jsonResult(tools.AnalyzeTimeCorrelation(ctx, namespace, podName, timeRange, windowSize))
}
