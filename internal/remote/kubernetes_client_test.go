package remote

import (
	"context"
	"testing"

	"jobsmith/internal/job"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/yaml"
)

func newFakeKubernetesClient(t *testing.T, objs ...client.Object) (*KubernetesClient, client.Client) {
	t.Helper()
	scheme := runtime.NewScheme()
	_ = corev1.AddToScheme(scheme)
	k8sClient := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
	return NewKubernetesClient(k8sClient, "ci", "jobsmith"), k8sClient
}

func TestKubernetesClient(t *testing.T) {
	c, _ := newFakeKubernetesClient(t)
	exerciseClient(t, c)
}

func TestKubernetesClient_StoresConfigMap(t *testing.T) {
	c, k8sClient := newFakeKubernetesClient(t)
	ctx := context.Background()

	def := job.Definition{Name: "Build_Main", Template: "build", Body: map[string]any{"timeout": 30}}
	require.NoError(t, c.CreateOrUpdateJob(ctx, def.Name, BodyFor(def)))

	cm := &corev1.ConfigMap{}
	require.NoError(t, k8sClient.Get(ctx, client.ObjectKey{Namespace: "ci", Name: ObjectName(def.Name)}, cm))
	assert.Equal(t, "jobsmith", cm.Labels[LabelManagedBy])
	assert.Equal(t, "true", cm.Labels[LabelJob])
	assert.Equal(t, def.Hash(), cm.Annotations[AnnotationHash])
	assert.Equal(t, "build", cm.Annotations[AnnotationTemplate])
	assert.Equal(t, "Build_Main", cm.Annotations[annotationName])

	var content map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(cm.Data[bodyKey]), &content))
	assert.EqualValues(t, 30, content["timeout"])

	state, err := c.ListManagedJobs(ctx)
	require.NoError(t, err)
	assert.Contains(t, state, "Build_Main")
}

func TestKubernetesClient_UnmanagedAndUnlabelled(t *testing.T) {
	foreign := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "manual",
			Namespace:   "ci",
			Labels:      map[string]string{LabelJob: "true", LabelManagedBy: "helm"},
			Annotations: map[string]string{AnnotationHash: "abc"},
		},
	}
	unrelated := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "kube-root-ca.crt", Namespace: "ci"},
	}
	otherNamespace := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "elsewhere",
			Namespace: "prod",
			Labels:    map[string]string{LabelJob: "true", LabelManagedBy: "jobsmith"},
		},
	}
	c, _ := newFakeKubernetesClient(t, foreign, unrelated, otherNamespace)

	state, err := c.ListManagedJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, state, 1)
	assert.False(t, state["manual"].Managed)
	assert.Equal(t, "helm", state["manual"].ManagedBy)
	assert.Equal(t, "abc", state["manual"].Hash)
}

func TestKubernetesClient_LeavesForeignConfigMapsAlone(t *testing.T) {
	appConfig := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "ci"},
		Data:       map[string]string{"db.url": "postgres://prod"},
	}
	helmJob := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "manual",
			Namespace: "ci",
			Labels:    map[string]string{LabelJob: "true", LabelManagedBy: "helm"},
		},
		Data: map[string]string{bodyKey: "owner: helm\n"},
	}
	c, k8sClient := newFakeKubernetesClient(t, appConfig, helmJob)
	ctx := context.Background()

	state, err := c.ListManagedJobs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, state, "app-config")

	body := Body{Hash: "h", Content: map[string]any{"description": "x"}}
	assert.ErrorIs(t, c.CreateOrUpdateJob(ctx, "app-config", body), ErrNotOwned)
	assert.ErrorIs(t, c.CreateOrUpdateJob(ctx, "manual", body), ErrNotOwned)
	assert.ErrorIs(t, c.DeleteJob(ctx, "app-config"), ErrNotFound)
	assert.ErrorIs(t, c.DeleteJob(ctx, "manual"), ErrNotOwned)

	// Adoption never applies to objects that are not job records.
	adopt := body
	adopt.Adopt = true
	assert.ErrorIs(t, c.CreateOrUpdateJob(ctx, "app-config", adopt), ErrNotOwned)

	cm := &corev1.ConfigMap{}
	require.NoError(t, k8sClient.Get(ctx, client.ObjectKey{Namespace: "ci", Name: "app-config"}, cm))
	assert.Equal(t, "postgres://prod", cm.Data["db.url"])
	assert.NotContains(t, cm.Labels, LabelManagedBy)

	require.NoError(t, k8sClient.Get(ctx, client.ObjectKey{Namespace: "ci", Name: "manual"}, cm))
	assert.Equal(t, "helm", cm.Labels[LabelManagedBy])

	require.NoError(t, c.CreateOrUpdateJob(ctx, "manual", adopt))
	require.NoError(t, k8sClient.Get(ctx, client.ObjectKey{Namespace: "ci", Name: "manual"}, cm))
	assert.Equal(t, "jobsmith", cm.Labels[LabelManagedBy])
	require.NoError(t, c.DeleteJob(ctx, "manual"))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "build-main", ObjectName("build-main"))

	rewritten := ObjectName("release/1.0")
	assert.Regexp(t, `^release-1-0-[0-9a-f]{8}$`, rewritten)
	assert.NotEqual(t, ObjectName("release/1.0"), ObjectName("release-1.0"))

	long := ObjectName("a-very-long-job-name-that-goes-on-and-on-well-beyond-the-kubernetes-limit")
	assert.LessOrEqual(t, len(long), 63)
	assert.Regexp(t, `^job-[0-9a-f]{8}$`, ObjectName("___"))
}
