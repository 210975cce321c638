package debugger

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/giantswarm/mcp-kubedebug/internal/tools/debug"
)

// maxDisplayedEvents bounds the event table output.
const maxDisplayedEvents = 10

// maxDisplayedLogLines bounds the recent log output.
const maxDisplayedLogLines = 5

// PodDebugger renders debugging sessions to a terminal.
type PodDebugger struct {
	client *Client
	out    io.Writer
}

// NewPodDebugger creates a debugger writing to out.
func NewPodDebugger(client *Client, out io.Writer) *PodDebugger {
	return &PodDebugger{client: client, out: out}
}

// DebugPod collects and renders correlated data for one pod.
func (d *PodDebugger) DebugPod(ctx context.Context, namespace, podName, timeRange string, showLogs, showMetrics, showEvents bool) error {
	fmt.Fprintf(d.out, "Debugging pod %s in namespace %s\n", podName, namespace)

	result, err := d.client.CorrelatePodData(ctx, namespace, podName, "", timeRange)
	if err != nil {
		return err
	}

	d.renderSummary(result.Summary)
	if showEvents {
		d.renderEvents(result.Events)
	}
	if showMetrics {
		d.renderMetrics(result.Metrics)
	}
	if showLogs {
		d.renderLogs(result.Logs)
	}
	return nil
}

// DebugByLabels collects and renders correlated data for pods matching a
// label selector.
func (d *PodDebugger) DebugByLabels(ctx context.Context, namespace, labelSelector, timeRange string) error {
	fmt.Fprintf(d.out, "Debugging pods with labels %s in namespace %s\n", labelSelector, namespace)

	result, err := d.client.CorrelatePodData(ctx, namespace, "", labelSelector, timeRange)
	if err != nil {
		return err
	}

	d.renderSummary(result.Summary)
	d.renderEvents(result.Events)
	d.renderMetrics(result.Metrics)
	d.renderLogs(result.Logs)
	return nil
}

// AnalyzeNamespace renders namespace-wide logs, metrics, and events.
func (d *PodDebugger) AnalyzeNamespace(ctx context.Context, namespace, timeRange string) error {
	fmt.Fprintf(d.out, "Analyzing namespace %s\n", namespace)

	logs, err := d.client.PodLogs(ctx, namespace, timeRange)
	if err != nil {
		return err
	}
	metrics, err := d.client.PodMetrics(ctx, namespace, timeRange)
	if err != nil {
		return err
	}
	events, err := d.client.ClusterEvents(ctx, namespace, timeRange)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.out, "\nNamespace Analysis: %s\n", namespace)
	d.renderEvents(events)
	d.renderMetrics(metrics)
	d.renderLogs(logs)
	return nil
}

// HistoricalData collects correlated data for a pod over the last daysBack
// days, covering terminated pods still present in Loki.
func (d *PodDebugger) HistoricalData(ctx context.Context, namespace, podName string, daysBack int) (*debug.CorrelationResult, error) {
	if daysBack < 1 {
		daysBack = 1
	}
	timeRange := fmt.Sprintf("%dd", daysBack)

	fmt.Fprintf(d.out, "Getting historical data for %s (%d days)\n", podName, daysBack)

	return d.client.CorrelatePodData(ctx, namespace, podName, "", timeRange)
}

func (d *PodDebugger) renderSummary(summary debug.Summary) {
	fmt.Fprintf(d.out, "\nDebug Summary\n")
	fmt.Fprintf(d.out, "  Log Entries:    %d\n", summary.LogEntries)
	fmt.Fprintf(d.out, "  Error Logs:     %d\n", summary.ErrorLogs)
	fmt.Fprintf(d.out, "  Warning Events: %d\n", summary.WarningEvents)
	fmt.Fprintf(d.out, "  Error Events:   %d\n", summary.ErrorEvents)
	if summary.CloudWatchEvents > 0 {
		fmt.Fprintf(d.out, "  CloudWatch Events: %d (%d errors)\n", summary.CloudWatchEvents, summary.CloudWatchErrors)
	}
}

func (d *PodDebugger) renderEvents(events *debug.EventsResult) {
	if events == nil {
		return
	}
	if events.Error != "" {
		fmt.Fprintf(d.out, "\nEvents Error: %s\n", events.Error)
		return
	}
	if len(events.Events) == 0 {
		fmt.Fprintf(d.out, "\nNo events found\n")
		return
	}

	fmt.Fprintf(d.out, "\nKubernetes Events\n")
	shown := events.Events
	if len(shown) > maxDisplayedEvents {
		shown = shown[len(shown)-maxDisplayedEvents:]
	}
	for _, ev := range shown {
		message := ev.Message
		if len(message) > 50 {
			message = message[:50] + "..."
		}
		fmt.Fprintf(d.out, "  %s  %-7s %-20s %s/%s  %s\n",
			ev.FirstTimestamp.Format("15:04:05"),
			ev.Type,
			ev.Reason,
			ev.ObjectKind,
			ev.ObjectName,
			message,
		)
	}
}

func (d *PodDebugger) renderMetrics(metrics *debug.MetricsResult) {
	if metrics == nil {
		return
	}
	if metrics.Error != "" {
		fmt.Fprintf(d.out, "\nMetrics Error: %s\n", metrics.Error)
		return
	}
	if len(metrics.Metrics) == 0 {
		fmt.Fprintf(d.out, "\nNo metrics data available\n")
		return
	}

	fmt.Fprintf(d.out, "\nMetrics Summary\n")
	for _, name := range []string{"cpu_usage", "memory_usage", "network_rx", "network_tx"} {
		data, ok := metrics.Metrics[name]
		if !ok {
			continue
		}
		if data.Error != "" {
			fmt.Fprintf(d.out, "  %s: error - %s\n", name, data.Error)
			continue
		}
		fmt.Fprintf(d.out, "  %s: %d series\n", name, len(data.Series))
	}
}

func (d *PodDebugger) renderLogs(logs *debug.LogsResult) {
	if logs == nil {
		return
	}
	if logs.Error != "" {
		fmt.Fprintf(d.out, "\nLogs Error: %s\n", logs.Error)
		return
	}
	if len(logs.Streams) == 0 {
		fmt.Fprintf(d.out, "\nNo log data available\n")
		return
	}

	total := 0
	for _, stream := range logs.Streams {
		total += len(stream.Values)
	}

	fmt.Fprintf(d.out, "\nLogs Summary\n")
	fmt.Fprintf(d.out, "  Total log streams: %d\n", len(logs.Streams))
	fmt.Fprintf(d.out, "  Total log entries: %d\n", total)

	entries := logs.Streams[0].Values
	if len(entries) == 0 {
		return
	}
	if len(entries) > maxDisplayedLogLines {
		entries = entries[len(entries)-maxDisplayedLogLines:]
	}

	fmt.Fprintf(d.out, "\nRecent Log Entries:\n")
	for _, entry := range entries {
		line := entry.Line
		if len(line) > 100 {
			line = line[:100] + "..."
		}
		fmt.Fprintf(d.out, "  %s: %s\n", formatLokiTimestamp(entry.Timestamp), line)
	}
}

// formatLokiTimestamp renders a Loki nanosecond timestamp as a wall clock
// time.
func formatLokiTimestamp(raw string) string {
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	return time.Unix(0, ns).Format("15:04:05")
}
