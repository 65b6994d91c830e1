package templates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
)

const (
	// DefaultNamespace is where template ConfigMaps live when no override is provided.
	DefaultNamespace = "specctl-system"

	configMapPrefix     = "specctl-template-"
	dataKeySource       = "template.tf"
	annotationDigest    = "specctl.io/digest"
	annotationUpdatedAt = "specctl.io/updatedAt"
	annotationUpdatedBy = "specctl.io/updatedBy"
	labelManagedBy      = "app.kubernetes.io/managed-by"
	managedByValue      = "specctl"
	labelTemplate       = "specctl.io/template"
	requestTimeout      = 5 * time.Second
)

// KubeStore persists templates in Kubernetes ConfigMaps, one per template.
type KubeStore struct {
	client    kubernetes.Interface
	namespace string
	clock     func() time.Time
}

// KubeStoreOption configures a kube-backed store instance.
type KubeStoreOption func(*KubeStore)

// WithClock overrides the wall clock used for update timestamps (tests).
func WithClock(clock func() time.Time) KubeStoreOption {
	return func(s *KubeStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewKubeStore constructs a Kubernetes-backed template store.
func NewKubeStore(client kubernetes.Interface, namespace string, opts ...KubeStoreOption) *KubeStore {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	store := &KubeStore{
		client:    client,
		namespace: ns,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Save creates the template ConfigMap or replaces its content.
func (s *KubeStore) Save(ctx context.Context, t Template) error {
	if s.client == nil {
		return fmt.Errorf("kube store not initialised")
	}
	prepared, err := prepare(t, s.clock())
	if err != nil {
		return err
	}

	annotations := map[string]string{
		annotationDigest:    prepared.Digest,
		annotationUpdatedAt: prepared.UpdatedAt.Format(time.RFC3339),
	}
	if prepared.UpdatedBy != "" {
		annotations[annotationUpdatedBy] = prepared.UpdatedBy
	}
	desired := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName(prepared.Name),
			Namespace: s.namespace,
			Labels: map[string]string{
				labelManagedBy: managedByValue,
				labelTemplate:  prepared.Name,
			},
			Annotations: annotations,
		},
		Data: map[string]string{
			dataKeySource: string(prepared.Source),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	configMaps := s.client.CoreV1().ConfigMaps(s.namespace)
	_, err = configMaps.Create(ctx, desired, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("create template configmap: %w", err)
	}

	existing, err := configMaps.Get(ctx, desired.Name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get template configmap: %w", err)
	}
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	if existing.Annotations == nil {
		existing.Annotations = map[string]string{}
	}
	for k, v := range desired.Labels {
		existing.Labels[k] = v
	}
	delete(existing.Annotations, annotationUpdatedBy)
	for k, v := range desired.Annotations {
		existing.Annotations[k] = v
	}
	existing.Data = desired.Data
	if _, err := configMaps.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update template configmap: %w", err)
	}
	return nil
}

// Load reads a template and checks its content against the recorded digest.
func (s *KubeStore) Load(ctx context.Context, name string) (*Template, error) {
	if s.client == nil {
		return nil, fmt.Errorf("kube store not initialised")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, configMapName(name), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", errTemplateNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get template configmap: %w", err)
	}

	src, ok := cm.Data[dataKeySource]
	if !ok {
		return nil, fmt.Errorf("template configmap malformed: %s payload missing", dataKeySource)
	}
	t := &Template{
		Name:      name,
		Source:    []byte(src),
		Digest:    cm.Annotations[annotationDigest],
		UpdatedBy: cm.Annotations[annotationUpdatedBy],
	}
	if raw := cm.Annotations[annotationUpdatedAt]; raw != "" {
		updated, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", annotationUpdatedAt, err)
		}
		t.UpdatedAt = updated
	}
	if err := verify(t); err != nil {
		return nil, err
	}
	if t.Digest == "" {
		t.Digest = Digest(t.Source)
	}
	return t, nil
}

// List returns the names of the templates managed in the namespace.
func (s *KubeStore) List(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, fmt.Errorf("kube store not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	selector := labels.SelectorFromSet(labels.Set{labelManagedBy: managedByValue})
	list, err := s.client.CoreV1().ConfigMaps(s.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return nil, fmt.Errorf("list template configmaps: %w", err)
	}
	var names []string
	for _, cm := range list.Items {
		if name := cm.Labels[labelTemplate]; name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func configMapName(name string) string {
	return configMapPrefix + name
}
