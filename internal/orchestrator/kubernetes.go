package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
)

const (
	// managedByLabel marks every object this service owns.
	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "scraping-admin-dashboard"

	// templateLabel records which worker template a task was stamped from.
	templateLabel = "scraping.moseshope.io/template"

	workerContainerName = "scrape-worker"

	// PayloadEnvVar is the environment variable carrying the task's input
	// parameters into the worker container, as a JSON document.
	PayloadEnvVar = "QUERY_DATA"
)

// Kubernetes implements Platform on top of batch Jobs. Each remote task is
// one Job; the reusable worker template is a PodTemplate object that is
// created once and copied into every Job.
type Kubernetes struct {
	clientset    kubernetes.Interface
	namespace    string
	templateName string
	spec         TemplateSpec
	logger       zerolog.Logger
}

// KubernetesConfig holds the platform's connection and naming configuration.
type KubernetesConfig struct {
	KubeconfigPath string
	Namespace      string
	TemplateName   string
	Template       TemplateSpec
}

// NewKubernetes creates a Kubernetes platform from kubeconfig or in-cluster
// config.
func NewKubernetes(cfg KubernetesConfig, logger zerolog.Logger) (*Kubernetes, error) {
	var restConfig *rest.Config
	var err error

	if cfg.KubeconfigPath != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.KubeconfigPath)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("building k8s config: %w", err)
	}

	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating k8s clientset: %w", err)
	}

	return NewKubernetesFromInterface(cs, cfg, logger), nil
}

// NewKubernetesFromInterface creates a platform from an existing
// kubernetes.Interface (for testing).
func NewKubernetesFromInterface(cs kubernetes.Interface, cfg KubernetesConfig, logger zerolog.Logger) *Kubernetes {
	return &Kubernetes{
		clientset:    cs,
		namespace:    cfg.Namespace,
		templateName: cfg.TemplateName,
		spec:         cfg.Template,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
	}
}

// EnsureTemplate returns the worker PodTemplate name, creating the template
// from the configured spec if it does not exist. An existing template is
// left untouched.
func (k *Kubernetes) EnsureTemplate(ctx context.Context) (string, error) {
	templates := k.clientset.CoreV1().PodTemplates(k.namespace)

	_, err := templates.Get(ctx, k.templateName, metav1.GetOptions{})
	if err == nil {
		return k.templateName, nil
	}
	if !apierrors.IsNotFound(err) {
		return "", wrapAPIError("getting worker template", err)
	}

	tmpl := &corev1.PodTemplate{
		ObjectMeta: metav1.ObjectMeta{
			Name:      k.templateName,
			Namespace: k.namespace,
			Labels:    k.managedLabels(nil),
		},
		Template: corev1.PodTemplateSpec{
			ObjectMeta: metav1.ObjectMeta{
				Labels: k.managedLabels(k.spec.Labels),
			},
			Spec: k.workerPodSpec(),
		},
	}

	if _, err := templates.Create(ctx, tmpl, metav1.CreateOptions{}); err != nil {
		// A concurrent EnsureTemplate may have won the race.
		if apierrors.IsAlreadyExists(err) {
			return k.templateName, nil
		}
		return "", wrapAPIError("creating worker template", err)
	}

	k.logger.Info().Str("template", k.templateName).Msg("worker template created")
	return k.templateName, nil
}

// Launch creates one Job from the template with payload injected as the
// worker's input environment.
func (k *Kubernetes) Launch(ctx context.Context, templateHandle string, payload []byte) (*RemoteTask, error) {
	tmpl, err := k.clientset.CoreV1().PodTemplates(k.namespace).Get(ctx, templateHandle, metav1.GetOptions{})
	if err != nil {
		return nil, wrapAPIError("getting worker template", err)
	}

	name := fmt.Sprintf("scrape-task-%s", uuid.NewString()[:8])

	podSpec := tmpl.Template.DeepCopy()
	injectPayload(&podSpec.Spec, payload)

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: k.namespace,
			Labels:    k.managedLabels(map[string]string{templateLabel: templateHandle}),
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptr(int32(0)),
			Suspend:      ptr(false),
			Template:     *podSpec,
		},
	}

	created, err := k.clientset.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, wrapAPIError("creating task job", err)
	}

	k.logger.Info().Str("task", created.Name).Str("template", templateHandle).Msg("task launched")
	return k.toRemoteTask(created), nil
}

// Stop suspends the task's Job. The Job object stays around, so the task
// remains describable and can be resumed.
func (k *Kubernetes) Stop(ctx context.Context, taskHandle string) error {
	return k.setSuspend(ctx, taskHandle, true)
}

// Resume unsuspends a stopped task.
func (k *Kubernetes) Resume(ctx context.Context, taskHandle string) error {
	return k.setSuspend(ctx, taskHandle, false)
}

// Restart stops the task and launches a fresh replacement carrying the same
// pod spec, input payload included.
func (k *Kubernetes) Restart(ctx context.Context, taskHandle string) (*RemoteTask, error) {
	jobs := k.clientset.BatchV1().Jobs(k.namespace)

	old, err := jobs.Get(ctx, taskHandle, metav1.GetOptions{})
	if err != nil {
		return nil, wrapAPIError("getting task job", err)
	}

	if err := k.setSuspend(ctx, taskHandle, true); err != nil {
		return nil, err
	}

	replacement := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("scrape-task-%s", uuid.NewString()[:8]),
			Namespace: k.namespace,
			Labels:    old.Labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptr(int32(0)),
			Suspend:      ptr(false),
			Template:     *cleanPodTemplate(old.Spec.Template.DeepCopy()),
		},
	}

	created, err := jobs.Create(ctx, replacement, metav1.CreateOptions{})
	if err != nil {
		return nil, wrapAPIError("creating replacement job", err)
	}

	k.logger.Info().Str("old", taskHandle).Str("new", created.Name).Msg("task restarted")
	return k.toRemoteTask(created), nil
}

// Describe returns descriptors for the given handles, skipping handles the
// cluster no longer knows about.
func (k *Kubernetes) Describe(ctx context.Context, taskHandles []string) ([]RemoteTask, error) {
	jobs := k.clientset.BatchV1().Jobs(k.namespace)

	out := make([]RemoteTask, 0, len(taskHandles))
	for _, handle := range taskHandles {
		job, err := jobs.Get(ctx, handle, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, wrapAPIError("getting task job", err)
		}
		out = append(out, *k.toRemoteTask(job))
	}
	return out, nil
}

// ListHandles lists managed task handles, optionally filtered by lifecycle.
func (k *Kubernetes) ListHandles(ctx context.Context, lifecycle Lifecycle) ([]string, error) {
	list, err := k.clientset.BatchV1().Jobs(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", managedByLabel, managedByValue),
	})
	if err != nil {
		return nil, wrapAPIError("listing task jobs", err)
	}

	var handles []string
	for i := range list.Items {
		if lifecycle != "" && jobLifecycle(&list.Items[i]) != lifecycle {
			continue
		}
		handles = append(handles, list.Items[i].Name)
	}
	return handles, nil
}

func (k *Kubernetes) setSuspend(ctx context.Context, taskHandle string, suspend bool) error {
	jobs := k.clientset.BatchV1().Jobs(k.namespace)

	job, err := jobs.Get(ctx, taskHandle, metav1.GetOptions{})
	if err != nil {
		return wrapAPIError("getting task job", err)
	}

	job.Spec.Suspend = ptr(suspend)
	if _, err := jobs.Update(ctx, job, metav1.UpdateOptions{}); err != nil {
		return wrapAPIError("updating task job", err)
	}

	k.logger.Info().Str("task", taskHandle).Bool("suspend", suspend).Msg("task suspend flag set")
	return nil
}

func (k *Kubernetes) workerPodSpec() corev1.PodSpec {
	container := corev1.Container{
		Name:    workerContainerName,
		Image:   k.spec.Image,
		Command: k.spec.Command,
	}

	requests := corev1.ResourceList{}
	if k.spec.CPU != "" {
		requests[corev1.ResourceCPU] = resource.MustParse(k.spec.CPU)
	}
	if k.spec.Memory != "" {
		requests[corev1.ResourceMemory] = resource.MustParse(k.spec.Memory)
	}
	if len(requests) > 0 {
		container.Resources = corev1.ResourceRequirements{
			Requests: requests,
			Limits:   requests,
		}
	}

	return corev1.PodSpec{
		RestartPolicy:      corev1.RestartPolicyNever,
		ServiceAccountName: k.spec.ServiceAccount,
		Containers:         []corev1.Container{container},
	}
}

func (k *Kubernetes) managedLabels(extra map[string]string) map[string]string {
	labels := map[string]string{managedByLabel: managedByValue}
	for key, val := range extra {
		labels[key] = val
	}
	return labels
}

func (k *Kubernetes) toRemoteTask(job *batchv1.Job) *RemoteTask {
	task := &RemoteTask{
		TaskHandle:     job.Name,
		TemplateHandle: job.Labels[templateLabel],
		Lifecycle:      jobLifecycle(job),
		DesiredStatus:  "RUNNING",
		CreatedAt:      job.CreationTimestamp.Time,
	}

	if job.Spec.Suspend != nil && *job.Spec.Suspend {
		task.DesiredStatus = "STOPPED"
	}
	if job.Status.StartTime != nil {
		t := job.Status.StartTime.Time
		task.StartedAt = &t
	}
	if job.Status.CompletionTime != nil {
		t := job.Status.CompletionTime.Time
		task.StoppedAt = &t
	}

	for _, c := range job.Spec.Template.Spec.Containers {
		task.Containers = append(task.Containers, Container{
			Name:       c.Name,
			Image:      c.Image,
			LastStatus: string(task.Lifecycle),
		})
	}
	return task
}

// jobLifecycle maps a Job's status to the coarse task lifecycle. A suspended
// Job reads as stopped even while its pods drain; a completed Job also reads
// as stopped, since completion alone does not prove the work succeeded.
func jobLifecycle(job *batchv1.Job) Lifecycle {
	switch {
	case job.Spec.Suspend != nil && *job.Spec.Suspend:
		return LifecycleStopped
	case job.Status.Failed > 0:
		return LifecycleFailed
	case job.Status.Succeeded > 0:
		return LifecycleStopped
	case job.Status.Active > 0:
		return LifecycleRunning
	default:
		return LifecycleProvisioning
	}
}

// injectPayload sets the payload env var on the worker container, replacing
// any previous value.
func injectPayload(spec *corev1.PodSpec, payload []byte) {
	for i := range spec.Containers {
		env := spec.Containers[i].Env[:0]
		for _, e := range spec.Containers[i].Env {
			if e.Name != PayloadEnvVar {
				env = append(env, e)
			}
		}
		spec.Containers[i].Env = append(env, corev1.EnvVar{
			Name:  PayloadEnvVar,
			Value: string(payload),
		})
	}
}

// cleanPodTemplate strips the controller-managed labels a Job's pod template
// accumulates so it can be reused in a fresh Job.
func cleanPodTemplate(tmpl *corev1.PodTemplateSpec) *corev1.PodTemplateSpec {
	delete(tmpl.Labels, "controller-uid")
	delete(tmpl.Labels, "job-name")
	delete(tmpl.Labels, "batch.kubernetes.io/controller-uid")
	delete(tmpl.Labels, "batch.kubernetes.io/job-name")
	return tmpl
}

func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, derrors.ErrNotFound)
	}

	var statusErr *apierrors.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%s: %w", op, derrors.NewPlatformError(
			"kubernetes",
			int(statusErr.ErrStatus.Code),
			statusErr.ErrStatus.Message,
			err,
		))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func ptr[T any](v T) *T { return &v }
