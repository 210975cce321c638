// Package cloudwatch reads EKS control-plane log events from CloudWatch
// Logs. Events live in the /aws/eks/<cluster>/cluster log group.
package cloudwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

const maxEventsPerQuery = 1000

// logsAPI is the subset of the CloudWatch Logs client used here. Tests
// substitute a fake.
type logsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// Event is a normalized CloudWatch log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	LogStream string    `json:"log_stream,omitempty"`
	Cluster   string    `json:"cluster"`
}

// Client queries EKS control-plane logs.
type Client struct {
	logs     logsAPI
	executor *resilience.Executor
	logger   resilience.Logger
}

// NewClient wraps an existing CloudWatch Logs API client.
func NewClient(logs logsAPI, executor *resilience.Executor, logger resilience.Logger) *Client {
	if logger == nil {
		logger = resilience.NopLogger()
	}
	return &Client{
		logs:     logs,
		executor: executor,
		logger:   logger,
	}
}

// NewClientFromConfig builds a client from the default AWS configuration
// chain, honoring the optional region and shared profile overrides.
func NewClientFromConfig(ctx context.Context, region, profile string, executor *resilience.Executor, logger resilience.Logger) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewClient(cloudwatchlogs.NewFromConfig(cfg), executor, logger), nil
}

// ClusterEvents returns EKS control-plane log events for the cluster
// between start and end.
func (c *Client) ClusterEvents(ctx context.Context, cluster string, start, end time.Time) ([]Event, error) {
	spec := resilience.RequestSpec{
		Operation: "cloudwatch_filter_log_events",
		Target:    cluster,
	}

	return resilience.Do(ctx, c.executor, spec, func(ctx context.Context) ([]Event, error) {
		out, err := c.logs.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(fmt.Sprintf("/aws/eks/%s/cluster", cluster)),
			StartTime:    aws.Int64(start.UnixMilli()),
			EndTime:      aws.Int64(end.UnixMilli()),
			Limit:        aws.Int32(maxEventsPerQuery),
		})
		if err != nil {
			return nil, resilience.NewTransient(spec.Operation, err)
		}

		events := make([]Event, 0, len(out.Events))
		for _, raw := range out.Events {
			ev := Event{Cluster: cluster}
			if raw.Timestamp != nil {
				ev.Timestamp = time.UnixMilli(*raw.Timestamp).UTC()
			}
			if raw.Message != nil {
				ev.Message = *raw.Message
			}
			if raw.LogStreamName != nil {
				ev.LogStream = *raw.LogStreamName
			}
			events = append(events, ev)
		}
		return events, nil
	})
}
