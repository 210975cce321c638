// Package grafana provides a client for the official Grafana MCP server,
// which proxies Loki and Prometheus queries through configured Grafana
// datasources.
package grafana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

// session is the subset of the MCP client used by Client. It exists so tests
// can substitute a fake server session.
type session interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// Client talks to a mcp-grafana process over stdio. All tool calls go
// through the shared resilient executor.
type Client struct {
	settings *config.Settings
	executor *resilience.Executor
	logger   resilience.Logger

	mu        sync.RWMutex
	session   session
	connected bool
}

// ToolInfo describes one tool exposed by the Grafana MCP server.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HealthStatus is the result of a Grafana connectivity check.
type HealthStatus struct {
	Connected             bool              `json:"grafana_mcp_connected"`
	GrafanaAPI            bool              `json:"grafana_api"`
	DatasourcesAvailable  bool              `json:"datasources_available"`
	OverallHealthy        bool              `json:"overall_healthy"`
	CheckedAt             string            `json:"checked_at"`
	LokiDatasources       int               `json:"loki_datasources"`
	PrometheusDatasources int               `json:"prometheus_datasources"`
	Details               map[string]string `json:"details,omitempty"`
}

// NewClient creates a client for the Grafana MCP server. Call Connect before
// issuing queries.
func NewClient(settings *config.Settings, executor *resilience.Executor, logger resilience.Logger) *Client {
	if logger == nil {
		logger = resilience.NopLogger()
	}
	return &Client{
		settings: settings,
		executor: executor,
		logger:   logger,
	}
}

// Connect spawns the mcp-grafana binary and initializes the MCP session.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	key, err := c.settings.GrafanaKey()
	if err != nil {
		return fmt.Errorf("cannot connect to Grafana MCP server: %w", err)
	}

	env := []string{
		"GRAFANA_URL=" + c.settings.GrafanaURL,
		"GRAFANA_API_KEY=" + key,
	}

	mc, err := mcpclient.NewStdioMCPClient("mcp-grafana", env, "-t", "stdio")
	if err != nil {
		return fmt.Errorf("failed to start mcp-grafana: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "mcp-kubedebug",
		Version: "dev",
	}

	if _, err := mc.Initialize(ctx, initRequest); err != nil {
		mc.Close()
		return fmt.Errorf("failed to initialize Grafana MCP session: %w", err)
	}

	c.session = mc
	c.connected = true
	c.logger.Info("connected to Grafana MCP server", "url", c.settings.GrafanaURL)
	return nil
}

// Close shuts down the MCP session and the underlying process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.connected = false
	return err
}

// Connected reports whether the MCP session is established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// callTool invokes one tool on the Grafana MCP server and returns the text
// payload of the first content block.
func (c *Client) callTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	c.mu.RLock()
	sess := c.session
	connected := c.connected
	c.mu.RUnlock()

	if !connected || sess == nil {
		return "", resilience.NewFatal("grafana_"+name, fmt.Errorf("not connected to Grafana MCP server"))
	}

	spec := resilience.RequestSpec{
		Operation: "grafana_" + name,
		Target:    c.settings.GrafanaURL,
		Timeout:   c.settings.QueryTimeout,
	}

	return resilience.Do(ctx, c.executor, spec, func(ctx context.Context) (string, error) {
		request := mcp.CallToolRequest{}
		request.Params.Name = name
		request.Params.Arguments = arguments

		result, err := sess.CallTool(ctx, request)
		if err != nil {
			return "", resilience.NewTransient(spec.Operation, err)
		}
		if result.IsError {
			return "", resilience.NewFatal(spec.Operation, fmt.Errorf("tool %s failed: %s", name, textContent(result)))
		}
		return textContent(result), nil
	})
}

func textContent(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// QueryLoki runs a LogQL query through the Grafana Loki datasource.
func (c *Client) QueryLoki(ctx context.Context, query, start, end string, limit int) (map[string]interface{}, error) {
	text, err := c.callTool(ctx, "loki_query", map[string]interface{}{
		"query": query,
		"start": start,
		"end":   end,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(text)
}

// QueryPrometheus runs a PromQL range query through the Grafana Prometheus
// datasource.
func (c *Client) QueryPrometheus(ctx context.Context, query, start, end, step string) (map[string]interface{}, error) {
	if step == "" {
		step = "30s"
	}
	text, err := c.callTool(ctx, "prometheus_query", map[string]interface{}{
		"query": query,
		"start": start,
		"end":   end,
		"step":  step,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(text)
}

// ListDatasources lists the datasources configured in Grafana.
func (c *Client) ListDatasources(ctx context.Context) ([]map[string]interface{}, error) {
	text, err := c.callTool(ctx, "list_datasources", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeList(text)
}

// ListDashboards lists the dashboards configured in Grafana.
func (c *Client) ListDashboards(ctx context.Context) ([]map[string]interface{}, error) {
	text, err := c.callTool(ctx, "list_dashboards", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeList(text)
}

// SearchDashboards searches dashboards by title.
func (c *Client) SearchDashboards(ctx context.Context, query string) ([]map[string]interface{}, error) {
	text, err := c.callTool(ctx, "search_dashboards", map[string]interface{}{
		"query": query,
	})
	if err != nil {
		return nil, err
	}
	return decodeList(text)
}

// GetAlerts returns the current Grafana alerts.
func (c *Client) GetAlerts(ctx context.Context) ([]map[string]interface{}, error) {
	text, err := c.callTool(ctx, "get_alerts", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeList(text)
}

// AvailableTools lists the tools exposed by the Grafana MCP server.
func (c *Client) AvailableTools(ctx context.Context) ([]ToolInfo, error) {
	c.mu.RLock()
	sess := c.session
	connected := c.connected
	c.mu.RUnlock()

	if !connected || sess == nil {
		return nil, nil
	}

	result, err := sess.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Grafana MCP tools: %w", err)
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, ToolInfo{Name: tool.Name, Description: tool.Description})
	}
	return tools, nil
}

// HealthCheck probes Grafana connectivity by listing datasources and
// counting the Loki and Prometheus ones.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Connected: c.Connected(),
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
		Details:   make(map[string]string),
	}

	if !status.Connected {
		status.Details["connection"] = "not connected to Grafana MCP server"
		return status
	}

	datasources, err := c.ListDatasources(ctx)
	if err != nil {
		status.Details["grafana_api"] = fmt.Sprintf("failed: %v", err)
		return status
	}

	status.GrafanaAPI = true
	status.DatasourcesAvailable = len(datasources) > 0
	status.Details["grafana_api"] = "connected successfully"
	status.Details["datasources"] = fmt.Sprintf("found %d datasource(s)", len(datasources))

	for _, ds := range datasources {
		switch ds["type"] {
		case "loki":
			status.LokiDatasources++
		case "prometheus":
			status.PrometheusDatasources++
		}
	}

	status.OverallHealthy = status.Connected && status.GrafanaAPI && status.DatasourcesAvailable
	return status
}

func decodeObject(text string) (map[string]interface{}, error) {
	if text == "" {
		return map[string]interface{}{}, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to decode Grafana MCP response: %w", err)
	}
	return out, nil
}

func decodeList(text string) ([]map[string]interface{}, error) {
	if text == "" {
		return nil, nil
	}
	var out []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to decode Grafana MCP response: %w", err)
	}
	return out, nil
}
