package generic

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/cache"
)

// Lister provides a type-safe, read-only view of an informer's store.
// It is safe for concurrent use; the informer is the only writer.
type Lister[T runtime.Object] struct {
	genericLister cache.GenericLister
}

// NamespaceLister provides a type-safe view of one namespace of a Lister.
type NamespaceLister[T runtime.Object] struct {
	genericNamespaceLister cache.GenericNamespaceLister
}

// NewLister creates a new type-safe lister over an indexer.
func NewLister[T runtime.Object](indexer cache.Indexer, resource schema.GroupResource) *Lister[T] {
	return &Lister[T]{
		genericLister: cache.NewGenericLister(indexer, resource),
	}
}

// List returns all objects that match the selector.
func (l *Lister[T]) List(selector labels.Selector) ([]T, error) {
	objs, err := l.genericLister.List(selector)
	if err != nil {
		return nil, err
	}
	return convertAll[T](objs)
}

// Get returns the object with the given name.
// For namespaced resources, use ByNamespace(namespace).Get(name).
// For cluster-scoped resources, use Get(name) directly.
func (l *Lister[T]) Get(name string) (T, error) {
	obj, err := l.genericLister.Get(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return Convert[T](obj)
}

// GetByKey returns the object stored under a namespace/name key.
func (l *Lister[T]) GetByKey(key string) (T, error) {
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		var zero T
		return zero, err
	}
	if namespace == "" {
		return l.Get(name)
	}
	return l.ByNamespace(namespace).Get(name)
}

// ByNamespace returns a namespace-scoped lister.
func (l *Lister[T]) ByNamespace(namespace string) *NamespaceLister[T] {
	return &NamespaceLister[T]{
		genericNamespaceLister: l.genericLister.ByNamespace(namespace),
	}
}

// List returns all objects in the namespace that match the selector.
func (nl *NamespaceLister[T]) List(selector labels.Selector) ([]T, error) {
	objs, err := nl.genericNamespaceLister.List(selector)
	if err != nil {
		return nil, err
	}
	return convertAll[T](objs)
}

// Get returns the object with the given name in the namespace.
func (nl *NamespaceLister[T]) Get(name string) (T, error) {
	obj, err := nl.genericNamespaceLister.Get(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return Convert[T](obj)
}

func convertAll[T runtime.Object](objs []runtime.Object) ([]T, error) {
	result := make([]T, 0, len(objs))
	for _, obj := range objs {
		typed, err := Convert[T](obj)
		if err != nil {
			return nil, err
		}
		result = append(result, typed)
	}
	return result, nil
}

// Convert returns a T for an object held in the store. The store may hold T
// directly or, for dynamic informers, unstructured content; either way the
// result is never the cached instance itself.
func Convert[T runtime.Object](obj runtime.Object) (T, error) {
	switch o := obj.(type) {
	case *unstructured.Unstructured:
		return FromUnstructured[T](o)
	case T:
		if typed, ok := o.DeepCopyObject().(T); ok {
			return typed, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("object is not of type %T: %T", zero, obj)
}
