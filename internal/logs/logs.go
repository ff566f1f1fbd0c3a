// Package logs fetches recent log lines for remote scraping tasks. Log
// output is the only place a finished worker reports whether its batch
// actually succeeded, so the reconciler treats these lines as authoritative.
package logs

import (
	"bufio"
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Reader fetches the last tail lines of a task's log output.
type Reader interface {
	FetchLogs(ctx context.Context, taskHandle string, tail int) ([]string, error)
}

// Kubernetes reads task logs from the pods a task's Job created. When a task
// ran more than once the most recently started pod wins.
type Kubernetes struct {
	clientset kubernetes.Interface
	namespace string
	logger    zerolog.Logger
}

// NewKubernetes creates a pod-backed log reader.
func NewKubernetes(cs kubernetes.Interface, namespace string, logger zerolog.Logger) *Kubernetes {
	return &Kubernetes{
		clientset: cs,
		namespace: namespace,
		logger:    logger.With().Str("component", "logs").Logger(),
	}
}

// FetchLogs returns up to tail lines from the newest pod belonging to the
// task. A task whose pods are gone yields an empty slice, not an error.
func (k *Kubernetes) FetchLogs(ctx context.Context, taskHandle string, tail int) ([]string, error) {
	pods, err := k.clientset.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", taskHandle),
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods for task %s: %w", taskHandle, err)
	}
	if len(pods.Items) == 0 {
		return nil, nil
	}

	pod := newestPod(pods.Items)

	tailLines := int64(tail)
	stream, err := k.clientset.CoreV1().Pods(k.namespace).
		GetLogs(pod.Name, &corev1.PodLogOptions{TailLines: &tailLines}).
		Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("streaming logs for pod %s: %w", pod.Name, err)
	}
	defer stream.Close()

	var lines []string
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading logs for pod %s: %w", pod.Name, err)
	}

	k.logger.Debug().Str("task", taskHandle).Str("pod", pod.Name).Int("lines", len(lines)).Msg("fetched task logs")
	return lines, nil
}

func newestPod(pods []corev1.Pod) *corev1.Pod {
	sort.Slice(pods, func(i, j int) bool {
		return pods[i].CreationTimestamp.Time.After(pods[j].CreationTimestamp.Time)
	})
	return &pods[0]
}
