package generic

import (
	"context"
	"fmt"
	"reflect"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
)

// Client is a typed view over a single resource collection of the cluster API.
// Objects travel as unstructured content on the wire and are converted to T at
// the edges, so T can be any struct type with json tags (or
// *unstructured.Unstructured itself).
type Client[T runtime.Object] interface {
	// GVR returns the resource collection this client talks to.
	GVR() schema.GroupVersionResource

	Get(ctx context.Context, namespace, name string) (T, error)
	List(ctx context.Context, namespace string) ([]T, error)
	Create(ctx context.Context, namespace string, obj T) (T, error)
	Delete(ctx context.Context, namespace, name string) error

	// Patch applies a patch of the given type to the named object, or to one of
	// its subresources (for example "status").
	Patch(ctx context.Context, namespace, name string, pt types.PatchType, data []byte, subresources ...string) (T, error)

	// Informer returns a new, unstarted informer for the collection. An empty
	// namespace watches every namespace.
	Informer(namespace string, resync time.Duration) informers.GenericInformer
}

// NewClient creates a client for the given resource backed by a dynamic client.
func NewClient[T runtime.Object](gvr schema.GroupVersionResource, dyn dynamic.Interface) Client[T] {
	return client[T]{
		gvr: gvr,
		dyn: dyn,
	}
}

// NewForConfig creates a client for the given resource from a rest config.
func NewForConfig[T runtime.Object](gvr schema.GroupVersionResource, config *rest.Config) (Client[T], error) {
	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}
	return NewClient[T](gvr, dyn), nil
}

type client[T runtime.Object] struct {
	gvr schema.GroupVersionResource
	dyn dynamic.Interface
}

func (c client[T]) GVR() schema.GroupVersionResource { return c.gvr }

func (c client[T]) resource(namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return c.dyn.Resource(c.gvr)
	}
	return c.dyn.Resource(c.gvr).Namespace(namespace)
}

func (c client[T]) List(ctx context.Context, namespace string) ([]T, error) {
	ul, err := c.resource(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ul.Items))
	for i := range ul.Items {
		t, err := FromUnstructured[T](&ul.Items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c client[T]) Get(ctx context.Context, namespace, name string) (T, error) {
	u, err := c.resource(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		var zero T
		return zero, err
	}
	return FromUnstructured[T](u)
}

func (c client[T]) Create(ctx context.Context, namespace string, obj T) (T, error) {
	var zero T
	u, err := ToUnstructured(obj)
	if err != nil {
		return zero, err
	}
	created, err := c.resource(namespace).Create(ctx, u, metav1.CreateOptions{})
	if err != nil {
		return zero, err
	}
	return FromUnstructured[T](created)
}

func (c client[T]) Delete(ctx context.Context, namespace, name string) error {
	return c.resource(namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (c client[T]) Patch(ctx context.Context, namespace, name string, pt types.PatchType, data []byte, subresources ...string) (T, error) {
	u, err := c.resource(namespace).Patch(ctx, name, pt, data, metav1.PatchOptions{}, subresources...)
	if err != nil {
		var zero T
		return zero, err
	}
	return FromUnstructured[T](u)
}

func (c client[T]) Informer(namespace string, resync time.Duration) informers.GenericInformer {
	return dynamicinformer.NewFilteredDynamicInformer(c.dyn, c.gvr, namespace, resync,
		cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc}, nil)
}

// FromUnstructured converts unstructured content into a new T.
//
// T must be a pointer type (e.g., *corev1.Pod).
func FromUnstructured[T runtime.Object](u *unstructured.Unstructured) (T, error) {
	obj, err := newObject[T]()
	if err != nil {
		return obj, err
	}
	if uo, ok := any(obj).(runtime.Unstructured); ok {
		uo.SetUnstructuredContent(u.DeepCopy().UnstructuredContent())
		return obj, nil
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.UnstructuredContent(), obj); err != nil {
		return obj, fmt.Errorf("converting %s %s/%s to %T: %w", u.GetKind(), u.GetNamespace(), u.GetName(), obj, err)
	}
	return obj, nil
}

// ToUnstructured converts a typed object into unstructured content.
func ToUnstructured(obj runtime.Object) (*unstructured.Unstructured, error) {
	if u, ok := obj.(*unstructured.Unstructured); ok {
		return u.DeepCopy(), nil
	}
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("converting %T to unstructured: %w", obj, err)
	}
	return &unstructured.Unstructured{Object: m}, nil
}

func newObject[T runtime.Object]() (T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return zero, fmt.Errorf("type %T must be a pointer type (e.g., *corev1.Pod, not corev1.Pod)", zero)
	}
	obj, ok := reflect.New(typ.Elem()).Interface().(T)
	if !ok {
		return zero, fmt.Errorf("type %T does not implement runtime.Object", zero)
	}
	return obj, nil
}
