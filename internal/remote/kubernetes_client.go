package remote

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"jobsmith/pkg/logging"

	"github.com/zeebo/blake3"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	"sigs.k8s.io/yaml"
)

const (
	// annotationName keeps the original job name when the object name had to be rewritten.
	annotationName = "jobsmith.io/name"
	// bodyKey is the ConfigMap data key holding the job content.
	bodyKey = "job.yaml"
)

var invalidObjectChars = regexp.MustCompile(`[^a-z0-9-]+`)

// KubernetesClient stores jobs as ConfigMaps in one namespace.
type KubernetesClient struct {
	client.Client
	namespace string
	managedBy string
}

// NewKubernetesClient wraps an existing controller-runtime client.
func NewKubernetesClient(c client.Client, namespace, managedBy string) *KubernetesClient {
	return &KubernetesClient{Client: c, namespace: namespace, managedBy: managedBy}
}

// NewKubernetesClientFromKubeconfig builds a client from a kubeconfig path and
// context. An empty path uses the in-cluster config or $KUBECONFIG.
func NewKubernetesClientFromKubeconfig(kubeconfig, kubeContext, namespace, managedBy string) (*KubernetesClient, error) {
	restConfig, err := restConfigFor(kubeconfig, kubeContext)
	if err != nil {
		return nil, fmt.Errorf("failed to load Kubernetes config: %w", err)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return NewKubernetesClient(k8sClient, namespace, managedBy), nil
}

func restConfigFor(kubeconfig, kubeContext string) (*rest.Config, error) {
	if kubeconfig == "" {
		return ctrlconfig.GetConfigWithContext(kubeContext)
	}
	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}

// ListManagedJobs implements Client.
func (k *KubernetesClient) ListManagedJobs(ctx context.Context) (State, error) {
	list := &corev1.ConfigMapList{}
	if err := k.List(ctx, list, client.InNamespace(k.namespace), client.HasLabels{LabelJob}); err != nil {
		return nil, fmt.Errorf("failed to list job ConfigMaps in %s: %w", k.namespace, err)
	}

	state := make(State, len(list.Items))
	for _, cm := range list.Items {
		name := cm.Annotations[annotationName]
		if name == "" {
			name = cm.Name
		}
		owner := cm.Labels[LabelManagedBy]
		state[name] = RemoteJob{
			Name:      name,
			Hash:      cm.Annotations[AnnotationHash],
			Managed:   owner != "" && owner == k.managedBy,
			ManagedBy: owner,
		}
	}

	logging.Debug("KubernetesRemote", "Listed %d job ConfigMaps in %s", len(state), k.namespace)
	return state, nil
}

// CreateOrUpdateJob implements Client.
func (k *KubernetesClient) CreateOrUpdateJob(ctx context.Context, name string, body Body) error {
	data, err := yaml.Marshal(body.Content)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", name, err)
	}

	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: k.namespace, Name: ObjectName(name)}
	err = k.Get(ctx, key, cm)
	switch {
	case apierrors.IsNotFound(err):
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: key.Name, Namespace: key.Namespace},
		}
		k.fill(cm, name, body, data)
		if err := k.Create(ctx, cm); err != nil {
			return fmt.Errorf("failed to create ConfigMap %s/%s: %w", key.Namespace, key.Name, err)
		}
		logging.Info("KubernetesRemote", "Created job %s as ConfigMap %s/%s", name, key.Namespace, key.Name)
	case err != nil:
		return fmt.Errorf("failed to get ConfigMap %s/%s: %w", key.Namespace, key.Name, err)
	default:
		if err := k.checkOwnership(cm, name, body); err != nil {
			return err
		}
		k.fill(cm, name, body, data)
		if err := k.Update(ctx, cm); err != nil {
			return fmt.Errorf("failed to update ConfigMap %s/%s: %w", key.Namespace, key.Name, err)
		}
		logging.Info("KubernetesRemote", "Updated job %s in ConfigMap %s/%s", name, key.Namespace, key.Name)
	}
	return nil
}

// checkOwnership refuses to overwrite ConfigMaps that are not job records,
// records of another job name, and records owned by someone else unless the
// write adopts them.
func (k *KubernetesClient) checkOwnership(cm *corev1.ConfigMap, name string, body Body) error {
	if _, ok := cm.Labels[LabelJob]; !ok {
		return fmt.Errorf("ConfigMap %s/%s is not a job record: %w", cm.Namespace, cm.Name, ErrNotOwned)
	}
	if stored := cm.Annotations[annotationName]; stored != "" && stored != name {
		return fmt.Errorf("ConfigMap %s/%s holds job %q, not %q: %w", cm.Namespace, cm.Name, stored, name, ErrNotOwned)
	}
	if cm.Labels[LabelManagedBy] != k.managedBy && !body.Adopt {
		return fmt.Errorf("ConfigMap %s/%s is managed by %q: %w", cm.Namespace, cm.Name, cm.Labels[LabelManagedBy], ErrNotOwned)
	}
	return nil
}

func (k *KubernetesClient) fill(cm *corev1.ConfigMap, name string, body Body, data []byte) {
	if cm.Labels == nil {
		cm.Labels = map[string]string{}
	}
	if cm.Annotations == nil {
		cm.Annotations = map[string]string{}
	}
	cm.Labels[LabelManagedBy] = k.managedBy
	cm.Labels[LabelJob] = "true"
	cm.Annotations[AnnotationHash] = body.Hash
	cm.Annotations[annotationName] = name
	if body.Template != "" {
		cm.Annotations[AnnotationTemplate] = body.Template
	}
	cm.Data = map[string]string{bodyKey: string(data)}
}

// DeleteJob implements Client.
func (k *KubernetesClient) DeleteJob(ctx context.Context, name string) error {
	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: k.namespace, Name: ObjectName(name)}
	if err := k.Get(ctx, key, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("delete %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to get ConfigMap %s/%s: %w", key.Namespace, key.Name, err)
	}
	if _, ok := cm.Labels[LabelJob]; !ok {
		return fmt.Errorf("delete %s: %w", name, ErrNotFound)
	}
	if err := k.checkOwnership(cm, name, Body{}); err != nil {
		return err
	}
	if err := k.Delete(ctx, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("delete %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete ConfigMap %s/%s: %w", k.namespace, cm.Name, err)
	}
	logging.Info("KubernetesRemote", "Deleted job %s", name)
	return nil
}

// ObjectName maps a job name to a valid Kubernetes object name. Names that
// need rewriting get a short hash suffix to keep them unique.
func ObjectName(name string) string {
	lower := strings.ToLower(name)
	clean := strings.Trim(invalidObjectChars.ReplaceAllString(lower, "-"), "-")
	if clean == name && len(clean) <= 63 {
		return clean
	}
	suffix := nameSuffix(name)
	if len(clean) > 54 {
		clean = strings.TrimRight(clean[:54], "-")
	}
	if clean == "" {
		return "job-" + suffix
	}
	return clean + "-" + suffix
}

// nameSuffix is a short stable hash of a job name.
func nameSuffix(name string) string {
	sum := blake3.Sum256([]byte(name))
	return hex.EncodeToString(sum[:4])
}
