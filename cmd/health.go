package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/debugger"
)

// newHealthCmd creates the command that checks server health.
func newHealthCmd() *cobra.Command {
	var (
		serverURL string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check MCP server health",
		Long: `Check the health of a running mcp-kubedebug server and its data
sources: the Grafana MCP connection, Loki and Prometheus datasources, the
Kubernetes API, and CloudWatch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := debugger.Connect(cmd.Context(), serverURL)
			if err != nil {
				fmt.Println("✗ MCP server is not responding")
				return err
			}
			defer client.Close()

			report, err := client.HealthCheck(cmd.Context())
			if err != nil {
				fmt.Println("✗ MCP server health check failed")
				return err
			}

			if report.OverallHealthy {
				fmt.Println("✓ MCP server is healthy")
			} else {
				fmt.Println("✗ MCP server reports degraded health")
			}

			if verbose {
				encoded, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(encoded))
			}

			if !report.OverallHealthy {
				return fmt.Errorf("server unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "MCP server URL")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the full health report")

	return cmd
}

// newConfigCmd creates the command that prints the effective configuration.
func newConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}

			fmt.Println("mcp-kubedebug configuration")
			fmt.Printf("  Grafana URL:    %s\n", settings.GrafanaURL)
			fmt.Printf("  Server:         %s:%d\n", settings.ServerHost, settings.ServerPort)
			fmt.Printf("  Debug mode:     %t\n", settings.Debug)
			fmt.Printf("  Log level:      %s\n", settings.LogLevel)
			fmt.Printf("  AWS region:     %s\n", settings.AWSRegion)
			fmt.Printf("  EKS cluster:    %s\n", settings.EKSClusterName)
			fmt.Printf("  K8s namespace:  %s\n", settings.K8sNamespace)
			fmt.Printf("  Query timeout:  %s\n", settings.QueryTimeout)
			fmt.Printf("  Max concurrent: %d\n", settings.MaxConcurrentQueries)

			if issues := settings.Validate(); len(issues) > 0 {
				fmt.Fprintln(os.Stderr, "\nConfiguration issues:")
				for _, issue := range issues {
					fmt.Fprintf(os.Stderr, "  - %s\n", issue)
				}
				return fmt.Errorf("invalid configuration (%d issue(s))", len(issues))
			}

			fmt.Println("\n✓ Configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")

	return cmd
}
