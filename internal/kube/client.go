// Package kube reads Kubernetes cluster events for debugging. Configuration
// follows the usual in-cluster then kubeconfig fallback.
package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

// Event is a normalized Kubernetes event.
type Event struct {
	Name           string     `json:"name"`
	Namespace      string     `json:"namespace"`
	Reason         string     `json:"reason"`
	Message        string     `json:"message"`
	Type           string     `json:"type"`
	ObjectKind     string     `json:"object_kind"`
	ObjectName     string     `json:"object_name"`
	FirstTimestamp time.Time  `json:"first_timestamp"`
	LastTimestamp  *time.Time `json:"last_timestamp,omitempty"`
	Count          int32      `json:"count"`
}

// Client lists cluster events through the Kubernetes API.
type Client struct {
	clientset kubernetes.Interface
	executor  *resilience.Executor
	logger    resilience.Logger
}

// NewClient wraps an existing clientset. Tests pass a fake clientset here.
func NewClient(clientset kubernetes.Interface, executor *resilience.Executor, logger resilience.Logger) *Client {
	if logger == nil {
		logger = resilience.NopLogger()
	}
	return &Client{
		clientset: clientset,
		executor:  executor,
		logger:    logger,
	}
}

// NewClientFromConfig builds a client from the in-cluster configuration,
// falling back to the given kubeconfig path (or the default location when
// empty).
func NewClientFromConfig(kubeconfigPath string, executor *resilience.Executor, logger resilience.Logger) (*Client, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfigPath == "" {
			if env := os.Getenv("KUBECONFIG"); env != "" {
				kubeconfigPath = env
			} else if home, herr := os.UserHomeDir(); herr == nil {
				kubeconfigPath = filepath.Join(home, ".kube", "config")
			}
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load Kubernetes configuration: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return NewClient(clientset, executor, logger), nil
}

// Events lists events in the namespace that started at or after since,
// oldest first.
func (c *Client) Events(ctx context.Context, namespace string, since time.Time) ([]Event, error) {
	spec := resilience.RequestSpec{
		Operation: "k8s_list_events",
		Target:    namespace,
	}

	return resilience.Do(ctx, c.executor, spec, func(ctx context.Context) ([]Event, error) {
		list, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, resilience.NewTransient(spec.Operation, err)
		}

		events := make([]Event, 0, len(list.Items))
		for _, item := range list.Items {
			if item.FirstTimestamp.IsZero() || item.FirstTimestamp.Time.Before(since) {
				continue
			}
			ev := Event{
				Name:           item.Name,
				Namespace:      item.Namespace,
				Reason:         item.Reason,
				Message:        item.Message,
				Type:           item.Type,
				ObjectKind:     item.InvolvedObject.Kind,
				ObjectName:     item.InvolvedObject.Name,
				FirstTimestamp: item.FirstTimestamp.Time,
				Count:          item.Count,
			}
			if !item.LastTimestamp.IsZero() {
				t := item.LastTimestamp.Time
				ev.LastTimestamp = &t
			}
			events = append(events, ev)
		}

		sort.Slice(events, func(i, j int) bool {
			return events[i].FirstTimestamp.Before(events[j].FirstTimestamp)
		})
		return events, nil
	})
}
