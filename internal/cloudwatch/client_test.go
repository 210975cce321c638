package cloudwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

type fakeLogsAPI struct {
	inputs    []*cloudwatchlogs.FilterLogEventsInput
	output    *cloudwatchlogs.FilterLogEventsOutput
	failUntil int
}

func (f *fakeLogsAPI) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.inputs = append(f.inputs, params)
	if len(f.inputs) <= f.failUntil {
		return nil, errors.New("throttled")
	}
	return f.output, nil
}

func testExecutor() *resilience.Executor {
	policy := resilience.DefaultRetryPolicy()
	policy.BaseDelay = time.Millisecond
	return resilience.NewExecutor(2, policy)
}

func TestClusterEvents(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	api := &fakeLogsAPI{output: &cloudwatchlogs.FilterLogEventsOutput{
		Events: []types.FilteredLogEvent{
			{
				Timestamp:     aws.Int64(now.UnixMilli()),
				Message:       aws.String("OOMKilled container api"),
				LogStreamName: aws.String("kube-apiserver-audit"),
			},
		},
	}}

	c := NewClient(api, testExecutor(), nil)

	start := now.Add(-time.Hour)
	events, err := c.ClusterEvents(context.Background(), "prod-eks", start, now)
	if err != nil {
		t.Fatalf("ClusterEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	ev := events[0]
	if ev.Cluster != "prod-eks" || ev.Message != "OOMKilled container api" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, now)
	}

	input := api.inputs[0]
	if got := aws.ToString(input.LogGroupName); got != "/aws/eks/prod-eks/cluster" {
		t.Errorf("log group = %q", got)
	}
	if aws.ToInt64(input.StartTime) != start.UnixMilli() || aws.ToInt64(input.EndTime) != now.UnixMilli() {
		t.Errorf("time window = [%d, %d]", aws.ToInt64(input.StartTime), aws.ToInt64(input.EndTime))
	}
	if aws.ToInt32(input.Limit) != maxEventsPerQuery {
		t.Errorf("limit = %d, want %d", aws.ToInt32(input.Limit), maxEventsPerQuery)
	}
}

func TestClusterEventsRetries(t *testing.T) {
	api := &fakeLogsAPI{
		failUntil: 2,
		output:    &cloudwatchlogs.FilterLogEventsOutput{},
	}
	c := NewClient(api, testExecutor(), nil)

	_, err := c.ClusterEvents(context.Background(), "prod-eks", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("ClusterEvents() error = %v", err)
	}
	if len(api.inputs) != 3 {
		t.Fatalf("API called %d times, want 3", len(api.inputs))
	}
}

func TestClusterEventsExhaustsRetries(t *testing.T) {
	api := &fakeLogsAPI{failUntil: 100}
	c := NewClient(api, testExecutor(), nil)

	_, err := c.ClusterEvents(context.Background(), "prod-eks", time.Now().Add(-time.Hour), time.Now())
	var exhausted *resilience.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
}
