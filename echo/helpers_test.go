package echo

import (
	"bytes"
	"sync"
	"testing"

	"github.com/imjasonh/echo-operator/controller"
	"github.com/imjasonh/echo-operator/generic"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"
	"k8s.io/client-go/tools/record"
)

// syncBuffer is a bytes.Buffer safe for use by workers and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newEcho(namespace, name, message string) *Echo {
	return &Echo{
		TypeMeta:   metav1.TypeMeta{APIVersion: SchemeGroupVersion.String(), Kind: Kind},
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec:       EchoSpec{Message: message},
	}
}

type fixture struct {
	dyn      *fake.FakeDynamicClient
	client   generic.Client[*Echo]
	out      *syncBuffer
	recorder *record.FakeRecorder
	ctx      *Context
}

func newFixture(t *testing.T, objs ...runtime.Object) *fixture {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, AddToScheme(scheme))

	dyn := fake.NewSimpleDynamicClientWithCustomListKinds(scheme,
		map[schema.GroupVersionResource]string{Resource: Kind + "List"}, objs...)
	client := generic.NewClient[*Echo](Resource, dyn)
	out := &syncBuffer{}
	recorder := record.NewFakeRecorder(100)

	return &fixture{
		dyn:      dyn,
		client:   client,
		out:      out,
		recorder: recorder,
		ctx: &Context{
			Status:   controller.NewStatusPatcher(client, controller.StatusPatchOptions{}),
			Recorder: recorder,
			Out:      out,
		},
	}
}

// statusPatches counts the status writes sent to the cluster.
func (f *fixture) statusPatches() int {
	n := 0
	for _, a := range f.dyn.Actions() {
		if pa, ok := a.(clienttesting.PatchAction); ok && pa.GetSubresource() == "status" {
			n++
		}
	}
	return n
}
