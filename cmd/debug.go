package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-kubedebug/internal/debugger"
)

// defaultServerURL is where the CLI expects a local serve instance.
const defaultServerURL = "http://localhost:8000/mcp"

// withDebugClient dials the server and hands a debugger to fn, closing the
// session afterwards.
func withDebugClient(cmd *cobra.Command, serverURL string, fn func(*debugger.PodDebugger) error) error {
	client, err := debugger.Connect(cmd.Context(), serverURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}
	defer client.Close()

	return fn(debugger.NewPodDebugger(client, os.Stdout))
}

// newDebugCmd creates the command that debugs a single pod.
func newDebugCmd() *cobra.Command {
	var (
		serverURL  string
		timeRange  string
		showLogs   bool
		showMetric bool
		showEvents bool
	)

	cmd := &cobra.Command{
		Use:   "debug <namespace> <pod>",
		Short: "Debug a specific pod",
		Long: `Debug a specific pod by correlating its Loki logs, Prometheus
metrics, and Kubernetes events over the given time range.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDebugClient(cmd, serverURL, func(d *debugger.PodDebugger) error {
				return d.DebugPod(cmd.Context(), args[0], args[1], timeRange, showLogs, showMetric, showEvents)
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "MCP server URL")
	cmd.Flags().StringVar(&timeRange, "time", "1h", "Time range (e.g. 1h, 30m, 2d)")
	cmd.Flags().BoolVar(&showLogs, "logs", true, "Show logs")
	cmd.Flags().BoolVar(&showMetric, "metrics", true, "Show metrics")
	cmd.Flags().BoolVar(&showEvents, "events", true, "Show events")

	return cmd
}

// newLabelsCmd creates the command that debugs pods by label selector.
func newLabelsCmd() *cobra.Command {
	var (
		serverURL string
		timeRange string
	)

	cmd := &cobra.Command{
		Use:   "labels <namespace> <selector>",
		Short: "Debug pods matching a label selector",
		Long: `Debug all pods matching a Kubernetes label selector, e.g.
app=myapp,version=v1. The selector is converted to a LogQL stream selector
for Loki queries.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDebugClient(cmd, serverURL, func(d *debugger.PodDebugger) error {
				return d.DebugByLabels(cmd.Context(), args[0], args[1], timeRange)
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "MCP server URL")
	cmd.Flags().StringVar(&timeRange, "time", "1h", "Time range (e.g. 1h, 30m, 2d)")

	return cmd
}

// newAnalyzeCmd creates the command that analyzes a namespace.
func newAnalyzeCmd() *cobra.Command {
	var (
		serverURL string
		timeRange string
	)

	cmd := &cobra.Command{
		Use:   "analyze <namespace>",
		Short: "Analyze all activity in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDebugClient(cmd, serverURL, func(d *debugger.PodDebugger) error {
				return d.AnalyzeNamespace(cmd.Context(), args[0], timeRange)
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "MCP server URL")
	cmd.Flags().StringVar(&timeRange, "time", "1h", "Time range (e.g. 1h, 30m, 2d)")

	return cmd
}

// newHistoryCmd creates the command that fetches historical pod data.
func newHistoryCmd() *cobra.Command {
	var (
		serverURL string
		days      int
	)

	cmd := &cobra.Command{
		Use:   "history <namespace> <pod>",
		Short: "Get historical data for terminated pods",
		Long: `Get historical logs and events for a pod over the last days,
covering pods that no longer exist but still have data in Loki.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDebugClient(cmd, serverURL, func(d *debugger.PodDebugger) error {
				result, err := d.HistoricalData(cmd.Context(), args[0], args[1], days)
				if err != nil {
					return err
				}
				fmt.Printf("Historical data retrieved: %d log entries, %d error logs\n",
					result.Summary.LogEntries, result.Summary.ErrorLogs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "MCP server URL")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days back to search")

	return cmd
}
