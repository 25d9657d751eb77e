package generic

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/tools/cache"
)

func unstructuredConfigMap(t *testing.T, cm *corev1.ConfigMap) *unstructured.Unstructured {
	t.Helper()
	u, err := ToUnstructured(cm)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func newTestLister(t *testing.T, cms ...*corev1.ConfigMap) *Lister[*corev1.ConfigMap] {
	t.Helper()
	indexer := cache.NewIndexer(cache.MetaNamespaceKeyFunc, cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc})
	for _, cm := range cms {
		if err := indexer.Add(unstructuredConfigMap(t, cm)); err != nil {
			t.Fatal(err)
		}
	}
	return NewLister[*corev1.ConfigMap](indexer, configMaps.GroupResource())
}

func TestLister(t *testing.T) {
	labeled := newConfigMap("default", "cm2", map[string]string{"key": "value2"})
	labeled.Labels = map[string]string{"app": "test"}
	lister := newTestLister(t,
		newConfigMap("default", "cm1", map[string]string{"key": "value1"}),
		labeled,
		newConfigMap("other", "cm3", nil),
	)

	cms, err := lister.List(labels.Everything())
	if err != nil {
		t.Fatalf("failed to list all: %v", err)
	}
	if len(cms) != 3 {
		t.Errorf("expected 3 configmaps, got %d", len(cms))
	}

	cms, err = lister.List(labels.SelectorFromSet(labels.Set{"app": "test"}))
	if err != nil {
		t.Fatalf("failed to list with selector: %v", err)
	}
	if len(cms) != 1 || cms[0].Name != "cm2" {
		t.Errorf("expected only cm2 with label app=test, got %d", len(cms))
	}

	nsLister := lister.ByNamespace("default")
	cms, err = nsLister.List(labels.Everything())
	if err != nil {
		t.Fatalf("failed to list in namespace: %v", err)
	}
	if len(cms) != 2 {
		t.Errorf("expected 2 configmaps in default namespace, got %d", len(cms))
	}

	cm, err := nsLister.Get("cm1")
	if err != nil {
		t.Fatalf("failed to get cm1: %v", err)
	}
	if cm.Data["key"] != "value1" {
		t.Errorf("expected key=value1, got %v", cm.Data)
	}

	if _, err := nsLister.Get("nonexistent"); !apierrors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestListerGetByKey(t *testing.T) {
	lister := newTestLister(t, newConfigMap("ns", "cm", map[string]string{"k": "v"}))

	cm, err := lister.GetByKey("ns/cm")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if cm.Name != "cm" || cm.Namespace != "ns" {
		t.Errorf("unexpected configmap %s/%s", cm.Namespace, cm.Name)
	}

	if _, err := lister.GetByKey("ns/missing"); !apierrors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := lister.GetByKey("a/b/c"); err == nil {
		t.Error("expected an error for a malformed key")
	}
}

func TestListerReturnsCopies(t *testing.T) {
	lister := newTestLister(t, newConfigMap("ns", "cm", map[string]string{"k": "v"}))

	cm, err := lister.GetByKey("ns/cm")
	if err != nil {
		t.Fatal(err)
	}
	cm.Data["k"] = "changed"

	again, err := lister.GetByKey("ns/cm")
	if err != nil {
		t.Fatal(err)
	}
	if again.Data["k"] != "v" {
		t.Errorf("mutating a returned object changed the cache: %v", again.Data)
	}
}

func TestConvert(t *testing.T) {
	typed := newConfigMap("ns", "cm", nil)
	got, err := Convert[*corev1.ConfigMap](typed)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got == typed {
		t.Error("Convert returned the stored instance")
	}

	if _, err := Convert[*corev1.ConfigMap](&corev1.Secret{}); err == nil {
		t.Error("expected an error converting a Secret to a ConfigMap")
	}
}
