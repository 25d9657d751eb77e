package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/imjasonh/echo-operator/generic"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"
	"k8s.io/client-go/tools/cache"
)

const testFinalizer = "test.example.com/finalizer"

var testGVR = schema.GroupVersionResource{Group: "example.com", Version: "v1", Resource: "widgets"}

type testObj = *unstructured.Unstructured

func newTestObj(namespace, name string, finalizers ...string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion("example.com/v1")
	u.SetKind("Widget")
	u.SetNamespace(namespace)
	u.SetName(name)
	u.SetFinalizers(finalizers)
	_ = unstructured.SetNestedField(u.Object, "hello", "spec", "message")
	return u
}

func deleting(u *unstructured.Unstructured) *unstructured.Unstructured {
	now := metav1.Now()
	u.SetDeletionTimestamp(&now)
	return u
}

func newFakeDynamic(objs ...runtime.Object) *fake.FakeDynamicClient {
	return fake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{testGVR: "WidgetList"}, objs...)
}

func newTestClient(objs ...runtime.Object) (generic.Client[testObj], *fake.FakeDynamicClient) {
	dyn := newFakeDynamic(objs...)
	return generic.NewClient[testObj](testGVR, dyn), dyn
}

// watchStarted makes the fake deliver watch events from the tracker and
// returns a channel that is closed once the first watch is established.
func watchStarted(dyn *fake.FakeDynamicClient) <-chan struct{} {
	started := make(chan struct{})
	var once sync.Once
	dyn.PrependWatchReactor("*", func(action clienttesting.Action) (bool, watch.Interface, error) {
		w, err := dyn.Tracker().Watch(action.GetResource(), action.GetNamespace())
		if err != nil {
			return false, nil, err
		}
		once.Do(func() { close(started) })
		return true, w, nil
	})
	return started
}

// newIndexedController builds a controller whose cache is a plain indexer
// filled with objs, so workers can be driven without an informer.
func newIndexedController[C any](t *testing.T, client generic.Client[testObj], r Reconciler[testObj, C], p ErrorPolicy[testObj, C], shared *C, opts *Options, objs ...*unstructured.Unstructured) *Controller[testObj, C] {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.Finalizer == "" {
		opts.Finalizer = testFinalizer
	}
	c, err := New(client, r, p, shared, opts)
	require.NoError(t, err)

	indexer := cache.NewIndexer(cache.MetaNamespaceKeyFunc, cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc})
	for _, o := range objs {
		require.NoError(t, indexer.Add(o))
	}
	c.lister = generic.NewLister[testObj](indexer, testGVR.GroupResource())
	t.Cleanup(c.queue.ShutDown)
	return c
}

func getFinalizers(t *testing.T, client generic.Client[testObj], namespace, name string) []string {
	t.Helper()
	obj, err := client.Get(context.Background(), namespace, name)
	require.NoError(t, err)
	return obj.GetFinalizers()
}

type noShared struct{}
