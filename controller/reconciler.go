package controller

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"
)

// Object is a cluster resource the controller can reconcile. T must be a
// pointer type (e.g., *echo.Echo).
type Object interface {
	runtime.Object
	metav1.Object
}

// Reconciler is the interface for reconciling objects of type T.
//
// ReconcileKind is called for live objects that carry the controller's
// finalizer. FinalizeKind is called for objects marked for deletion; the
// finalizer is removed only after it returns successfully.
//
// Both receive a deep copy of the cached object and the shared context c,
// which must be treated as read-only. Implementations must be idempotent:
// repeating a call with the same observed spec and status must not repeat
// side effects.
type Reconciler[T Object, C any] interface {
	ReconcileKind(ctx context.Context, obj T, c *C) (Action, error)
	FinalizeKind(ctx context.Context, obj T, c *C) (Action, error)
}

// ReconcilerFuncs is an adapter to allow ordinary functions to be used as a
// Reconciler. A nil Finalize returns AwaitChange.
type ReconcilerFuncs[T Object, C any] struct {
	Reconcile func(ctx context.Context, obj T, c *C) (Action, error)
	Finalize  func(ctx context.Context, obj T, c *C) (Action, error)
}

// ReconcileKind calls f.Reconcile(ctx, obj, c).
func (f ReconcilerFuncs[T, C]) ReconcileKind(ctx context.Context, obj T, c *C) (Action, error) {
	return f.Reconcile(ctx, obj, c)
}

// FinalizeKind calls f.Finalize(ctx, obj, c).
func (f ReconcilerFuncs[T, C]) FinalizeKind(ctx context.Context, obj T, c *C) (Action, error) {
	if f.Finalize == nil {
		return AwaitChange(), nil
	}
	return f.Finalize(ctx, obj, c)
}

// ErrorPolicy decides when a failed reconciliation is retried. It must always
// return a positive delay; the controller treats anything else as a request
// for its own rate-limited backoff. Policies are expected to report the
// failure (log, event) as a side effect.
type ErrorPolicy[T Object, C any] interface {
	OnError(ctx context.Context, obj T, err error, c *C) time.Duration
}

// ErrorPolicyFunc is an adapter to allow ordinary functions to be used as an
// ErrorPolicy.
type ErrorPolicyFunc[T Object, C any] func(ctx context.Context, obj T, err error, c *C) time.Duration

// OnError calls f(ctx, obj, err, c).
func (f ErrorPolicyFunc[T, C]) OnError(ctx context.Context, obj T, err error, c *C) time.Duration {
	return f(ctx, obj, err, c)
}

// Forgetter is implemented by error policies that keep per-key state. The
// controller calls Forget after a key reconciles successfully or disappears.
type Forgetter interface {
	Forget(key string)
}

// FixedBackoff returns a policy that always retries after d.
func FixedBackoff[T Object, C any](d time.Duration) ErrorPolicy[T, C] {
	return ErrorPolicyFunc[T, C](func(context.Context, T, error, *C) time.Duration {
		return d
	})
}

// ExponentialBackoff returns a policy that doubles the delay for every
// consecutive failure of the same key, starting at base and capped at maxDelay.
func ExponentialBackoff[T Object, C any](base, maxDelay time.Duration) ErrorPolicy[T, C] {
	return &exponentialBackoff[T, C]{
		limiter: workqueue.NewTypedItemExponentialFailureRateLimiter[string](base, maxDelay),
	}
}

type exponentialBackoff[T Object, C any] struct {
	limiter workqueue.TypedRateLimiter[string]
}

func (b *exponentialBackoff[T, C]) OnError(_ context.Context, obj T, _ error, _ *C) time.Duration {
	key, err := cache.MetaNamespaceKeyFunc(obj)
	if err != nil {
		key = obj.GetNamespace() + "/" + obj.GetName()
	}
	return b.limiter.When(key)
}

func (b *exponentialBackoff[T, C]) Forget(key string) {
	b.limiter.Forget(key)
}
