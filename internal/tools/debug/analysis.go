package debug

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/mcp-kubedebug/internal/timeutil"
)

// highErrorRate is the error fraction above which a window is flagged.
const highErrorRate = 0.1

// highLogVolume is the per-window entry count considered unusually high.
const highLogVolume = 1000

// recentIssueWindow bounds what counts as a recent control-plane issue.
const recentIssueWindow = 30 * time.Minute

// Summary condenses a correlation into a few headline numbers.
type Summary struct {
	LogEntries    int  `json:"log_entries"`
	ErrorLogs     int  `json:"error_logs"`
	WarningEvents int  `json:"warning_events"`
	ErrorEvents   int  `json:"error_events"`
	HighCPUUsage  bool `json:"high_cpu_usage"`
	HighMemUsage  bool `json:"high_memory_usage"`

	// CloudWatch figures, present only for enhanced correlations.
	CloudWatchEvents int `json:"cloudwatch_events,omitempty"`
	CloudWatchErrors int `json:"cloudwatch_errors,omitempty"`
	RecentCloudWatch int `json:"recent_cloudwatch_issues,omitempty"`
}

var errorPatterns = []string{"error", "failed", "exception", "timeout"}

// isErrorLine reports whether a log line looks like an error.
func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "exception")
}

func summarize(logs *LogsResult, events *EventsResult, cloud *CloudWatchResult) Summary {
	var summary Summary

	if logs != nil && logs.Error == "" {
		for _, stream := range logs.Streams {
			summary.LogEntries += len(stream.Values)
			for _, entry := range stream.Values {
				if isErrorLine(entry.Line) {
					summary.ErrorLogs++
				}
			}
		}
	}

	if events != nil && events.Error == "" {
		for _, ev := range events.Events {
			switch ev.Type {
			case "Warning":
				summary.WarningEvents++
			case "Error":
				summary.ErrorEvents++
			}
		}
	}

	if cloud != nil && cloud.Error == "" {
		summary.CloudWatchEvents = len(cloud.Events)
		recentCutoff := time.Now().Add(-recentIssueWindow)
		for _, ev := range cloud.Events {
			lower := strings.ToLower(ev.Message)
			for _, pattern := range errorPatterns {
				if strings.Contains(lower, pattern) {
					summary.CloudWatchErrors++
					break
				}
			}
			if ev.Timestamp.After(recentCutoff) {
				summary.RecentCloudWatch++
			}
		}
	}

	return summary
}

func countLogs(logs *LogsResult) (total, errors int) {
	if logs == nil || logs.Error != "" {
		return 0, 0
	}
	for _, stream := range logs.Streams {
		total += len(stream.Values)
		for _, entry := range stream.Values {
			if isErrorLine(entry.Line) {
				errors++
			}
		}
	}
	return total, errors
}

// detectAnomalies flags suspicious log patterns in one window.
func detectAnomalies(logCount, errorCount int) []string {
	var anomalies []string

	if errorCount > 0 {
		divisor := logCount
		if divisor < 1 {
			divisor = 1
		}
		rate := float64(errorCount) / float64(divisor)
		if rate > highErrorRate {
			anomalies = append(anomalies, fmt.Sprintf("High error rate: %.1f%%", rate*100))
		}
	}

	switch {
	case logCount == 0:
		anomalies = append(anomalies, "No logs detected")
	case logCount > highLogVolume:
		anomalies = append(anomalies, "Unusually high log volume")
	}

	return anomalies
}

// WindowAnalysis is the outcome of analyzing one time window.
type WindowAnalysis struct {
	Window           TimeRange `json:"time_window"`
	Duration         string    `json:"duration"`
	LogCount         int       `json:"log_count"`
	ErrorCount       int       `json:"error_count"`
	MetricsAvailable bool      `json:"metrics_available"`
	Anomalies        []string  `json:"anomalies,omitempty"`
}

// VolumeTrend describes log volume across windows.
type VolumeTrend struct {
	Average float64 `json:"average"`
	Peak    int     `json:"peak"`
	Minimum int     `json:"minimum"`
	Trend   string  `json:"trend"`
}

// ErrorTrend describes the error pattern across windows.
type ErrorTrend struct {
	TotalErrors  int `json:"total_errors"`
	PeakErrors   int `json:"peak_errors"`
	ErrorWindows int `json:"error_windows"`
}

// Trends aggregates window analyses into directional signals.
type Trends struct {
	LogVolume    VolumeTrend `json:"log_volume"`
	ErrorPattern ErrorTrend  `json:"error_pattern"`
}

// AnalysisInfo identifies one sliding-window analysis.
type AnalysisInfo struct {
	Namespace    string `json:"namespace"`
	PodName      string `json:"pod_name"`
	TimeRange    string `json:"total_time_range"`
	WindowSize   string `json:"window_size"`
	TotalWindows int    `json:"total_windows"`
}

// TimeCorrelationResult is the outcome of a sliding-window analysis.
type TimeCorrelationResult struct {
	Analysis AnalysisInfo     `json:"analysis"`
	Windows  []WindowAnalysis `json:"windows"`
	Trends   *Trends          `json:"trends,omitempty"`
}

// AnalyzeTimeCorrelation splits the time range into windows of windowSize
// and analyzes logs and metrics per window. Windows are queried
// concurrently.
func (d *DebugTools) AnalyzeTimeCorrelation(ctx context.Context, namespace, podName, timeRange, windowSize string) *TimeCorrelationResult {
	start, end := timeutil.ParseRange(timeRange)
	size, err := timeutil.ParseDuration(windowSize)
	if err != nil || size <= 0 {
		size = 15 * time.Minute
		windowSize = "15m"
	}

	windows := timeutil.Windows(start, end, size)
	result := &TimeCorrelationResult{
		Analysis: AnalysisInfo{
			Namespace:    namespace,
			PodName:      podName,
			TimeRange:    timeRange,
			WindowSize:   windowSize,
			TotalWindows: len(windows),
		},
		Windows: make([]WindowAnalysis, len(windows)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, window := range windows {
		g.Go(func() error {
			logs := d.podLogsWindow(gctx, namespace, podName, "", window.Start, window.End)
			metrics := d.podMetricsWindow(gctx, namespace, podName, window.Start, window.End)

			logCount, errorCount := countLogs(logs)
			result.Windows[i] = WindowAnalysis{
				Window: TimeRange{
					Start: timeutil.RFC3339(window.Start),
					End:   timeutil.RFC3339(window.End),
				},
				Duration:         windowSize,
				LogCount:         logCount,
				ErrorCount:       errorCount,
				MetricsAvailable: metrics.Error == "",
				Anomalies:        detectAnomalies(logCount, errorCount),
			}
			return nil
		})
	}
	g.Wait()

	result.Trends = analyzeTrends(result.Windows)
	return result
}

// analyzeTrends compares window halves to call the volume direction.
func analyzeTrends(windows []WindowAnalysis) *Trends {
	if len(windows) == 0 {
		return nil
	}

	trends := &Trends{
		LogVolume: VolumeTrend{Trend: "stable", Minimum: windows[0].LogCount},
	}

	total := 0
	for _, w := range windows {
		total += w.LogCount
		if w.LogCount > trends.LogVolume.Peak {
			trends.LogVolume.Peak = w.LogCount
		}
		if w.LogCount < trends.LogVolume.Minimum {
			trends.LogVolume.Minimum = w.LogCount
		}
		trends.ErrorPattern.TotalErrors += w.ErrorCount
		if w.ErrorCount > trends.ErrorPattern.PeakErrors {
			trends.ErrorPattern.PeakErrors = w.ErrorCount
		}
		if w.ErrorCount > 0 {
			trends.ErrorPattern.ErrorWindows++
		}
	}
	trends.LogVolume.Average = float64(total) / float64(len(windows))

	if len(windows) >= 3 {
		half := len(windows) / 2
		firstHalf, secondHalf := 0, 0
		for _, w := range windows[:half] {
			firstHalf += w.LogCount
		}
		for _, w := range windows[half:] {
			secondHalf += w.LogCount
		}
		switch {
		case float64(secondHalf) > float64(firstHalf)*1.2:
			trends.LogVolume.Trend = "increasing"
		case float64(secondHalf) < float64(firstHalf)*0.8:
			trends.LogVolume.Trend = "decreasing"
		}
	}

	return trends
}
