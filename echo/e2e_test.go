package echo

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imjasonh/echo-operator/controller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	clienttesting "k8s.io/client-go/testing"
)

// TestEchoLifecycle runs the operator against a fake cluster: a new message
// is echoed once, an unchanged one is not written again, a changed one is
// echoed again and deletion runs cleanup before the finalizer goes away.
func TestEchoLifecycle(t *testing.T) {
	f := newFixture(t)

	started := make(chan struct{})
	var once sync.Once
	f.dyn.PrependWatchReactor("*", func(action clienttesting.Action) (bool, watch.Interface, error) {
		w, err := f.dyn.Tracker().Watch(action.GetResource(), action.GetNamespace())
		if err != nil {
			return false, nil, err
		}
		once.Do(func() { close(started) })
		return true, w, nil
	})

	reg := prometheus.NewRegistry()
	ctrl, err := controller.New[*Echo, Context](f.client, Reconciler{}, ErrorPolicy{}, f.ctx, &controller.Options{
		Namespace: "default",
		Finalizer: Finalizer,
		Metrics:   controller.NewMetrics(reg),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("controller did not stop")
		}
	})

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("watch never started")
	}

	poll := func(what string, cond func(*Echo) bool) {
		t.Helper()
		err := wait.PollUntilContextTimeout(ctx, 10*time.Millisecond, 10*time.Second, true, func(ctx context.Context) (bool, error) {
			e, err := f.client.Get(ctx, "default", "greeting")
			if err != nil {
				return false, err
			}
			return cond(e), nil
		})
		require.NoError(t, err, "waiting for %s", what)
	}
	echoed := func(msg string) func(*Echo) bool {
		return func(e *Echo) bool {
			return e.Status != nil && e.Status.Echoed && e.Status.EchoedMessage != nil && *e.Status.EchoedMessage == msg
		}
	}

	// A new message is echoed.
	_, err = f.client.Create(ctx, "default", newEcho("default", "greeting", "hi"))
	require.NoError(t, err)
	poll("hi to be echoed", echoed("hi"))

	got, err := f.client.Get(ctx, "default", "greeting")
	require.NoError(t, err)
	assert.Equal(t, []string{Finalizer}, got.Finalizers)

	// The status write comes back as a watch event; the second pass finds
	// nothing to do.
	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "Echo: greeting has already been echoed.")
	}, 10*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.statusPatches())
	assert.Equal(t, 1, strings.Count(f.out.String(), "Echoing message: hi\n"))

	// A changed message is echoed again.
	_, err = f.client.Patch(ctx, "default", "greeting", types.MergePatchType, []byte(`{"spec":{"message":"bye"}}`))
	require.NoError(t, err)
	poll("bye to be echoed", echoed("bye"))
	assert.Contains(t, f.out.String(), "Echoing message: bye\n")

	// Deletion runs cleanup and removes the finalizer.
	patches := f.statusPatches()
	now := metav1.Now().UTC().Format(time.RFC3339)
	_, err = f.client.Patch(ctx, "default", "greeting", types.MergePatchType,
		[]byte(`{"metadata":{"deletionTimestamp":"`+now+`"}}`))
	require.NoError(t, err)

	err = wait.PollUntilContextTimeout(ctx, 10*time.Millisecond, 10*time.Second, true, func(ctx context.Context) (bool, error) {
		e, err := f.client.Get(ctx, "default", "greeting")
		if apierrors.IsNotFound(err) {
			return true, nil
		} else if err != nil {
			return false, err
		}
		return len(e.Finalizers) == 0, nil
	})
	require.NoError(t, err, "waiting for the finalizer to be removed")
	if err := f.client.Delete(ctx, "default", "greeting"); err != nil && !apierrors.IsNotFound(err) {
		require.NoError(t, err)
	}

	assert.Never(t, func() bool { return f.statusPatches() != patches }, 200*time.Millisecond, 20*time.Millisecond,
		"no reconciliation after deletion")

	assert.Positive(t, reconcileCount(t, reg, "AwaitChange"))
	assert.Positive(t, reconcileCount(t, reg, "RequeueAfter"))
}

// reconcileCount returns echo_reconcile_total for greeting with the given
// outcome.
func reconcileCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "echo_reconcile_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["name"] == "greeting" && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
