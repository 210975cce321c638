package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcp-kubedebug",
	Short: "Kubernetes debugging over MCP with Grafana, Loki, and CloudWatch",
	Long: `mcp-kubedebug is a Kubernetes debugging tool built on the Model Context
Protocol (MCP). It runs an MCP server that correlates pod logs from Loki,
container metrics from Prometheus, Kubernetes events, and EKS control plane
logs from CloudWatch, all reached through the official Grafana MCP server.

The bundled CLI commands talk to a running server to debug pods, analyze
namespaces, and inspect historical data for terminated workloads.

Configuration comes from environment variables (GRAFANA_URL,
GRAFANA_API_KEY, AWS_REGION, EKS_CLUSTER_NAME, ...) or an optional config
file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the root command
func SetVersion(version string) {
	rootCmd.Version = version
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDebugCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}
