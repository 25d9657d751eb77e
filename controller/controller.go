package controller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/generic"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/utils/clock"
)

// Options configures a Controller.
type Options struct {
	// Name identifies the controller in logs and queue metrics.
	// Defaults to the resource name of the client.
	Name string

	// Namespace limits the controller to a specific namespace.
	// If empty, the controller watches all namespaces.
	Namespace string

	// Concurrency is the number of concurrent reconcilers.
	// Defaults to 1 if not set.
	Concurrency int

	// Finalizer is the finalizer the controller adds to every object it
	// manages. Required.
	Finalizer string

	// ResyncPeriod is how often every cached object is reconciled again even
	// without changes. Defaults to one hour; negative disables resync.
	ResyncPeriod time.Duration

	// ReconcileTimeout bounds a single reconciliation. Defaults to 30s.
	ReconcileTimeout time.Duration

	// Queue is a custom work queue for the controller. If not provided, one
	// is built from RateLimiter, Metrics and Clock.
	Queue *Queue

	// RateLimiter is used when an error policy does not return a delay.
	// Defaults to DefaultRateLimiter().
	RateLimiter workqueue.TypedRateLimiter[string]

	// Metrics records reconciliation outcomes. Optional.
	Metrics *Metrics

	// Clock drives delayed requeues. Defaults to the real clock.
	Clock clock.WithTicker
}

const (
	defaultResyncPeriod     = time.Hour
	defaultReconcileTimeout = 30 * time.Second
)

// Controller drives objects of type T toward their desired state. It watches
// the collection, queues the key of every changed object and has a bounded
// pool of workers reconcile each key, never more than one worker per key.
type Controller[T Object, C any] struct {
	name       string
	client     generic.Client[T]
	reconciler Reconciler[T, C]
	policy     ErrorPolicy[T, C]
	shared     *C

	gate    *Gate[T]
	watcher *Watcher[T]
	queue   *Queue
	metrics *Metrics

	concurrency int
	timeout     time.Duration

	lister *generic.Lister[T]
}

// New creates a new Controller. shared is handed to every callback and is
// never modified by the controller.
func New[T Object, C any](client generic.Client[T], reconciler Reconciler[T, C], policy ErrorPolicy[T, C], shared *C, opts *Options) (*Controller[T, C], error) {
	if opts == nil {
		opts = &Options{}
	}
	if reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	if policy == nil {
		return nil, errors.New("error policy is required")
	}
	if opts.Finalizer == "" {
		return nil, errors.New("finalizer is required")
	}
	name := opts.Name
	if name == "" {
		name = client.GVR().Resource
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	resync := opts.ResyncPeriod
	switch {
	case resync == 0:
		resync = defaultResyncPeriod
	case resync < 0:
		resync = 0
	}
	timeout := opts.ReconcileTimeout
	if timeout <= 0 {
		timeout = defaultReconcileTimeout
	}
	queue := opts.Queue
	if queue == nil {
		queue = NewQueue(QueueOptions{
			Name:            name,
			RateLimiter:     opts.RateLimiter,
			MetricsProvider: opts.Metrics.WorkqueueProvider(),
			Clock:           opts.Clock,
		})
	}

	return &Controller[T, C]{
		name:        name,
		client:      client,
		reconciler:  reconciler,
		policy:      policy,
		shared:      shared,
		gate:        NewGate(client, opts.Finalizer),
		watcher:     NewWatcher(client, WatchOptions{Namespace: opts.Namespace, ResyncPeriod: resync}),
		queue:       queue,
		metrics:     opts.Metrics,
		concurrency: concurrency,
		timeout:     timeout,
	}, nil
}

// Run starts the controller and blocks until the context is canceled.
// Reconciliations already in progress are allowed to finish before Run
// returns; keys still waiting in the queue are dropped.
func (c *Controller[T, C]) Run(ctx context.Context) error {
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("controller", c.name))
	clog.InfoContext(ctx, "starting controller", "concurrency", c.concurrency, "finalizer", c.gate.Finalizer())

	lister, err := c.watcher.Watch(ctx, c.enqueue)
	if err != nil {
		c.queue.ShutDown()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("starting watch: %w", err)
	}
	c.lister = lister

	var wg sync.WaitGroup
	for range c.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runWorker(ctx)
		}()
	}

	<-ctx.Done()
	clog.InfoContext(ctx, "shutting down controller, waiting for workers")
	c.queue.ShutDown()
	wg.Wait()
	clog.InfoContext(ctx, "controller stopped")
	return nil
}

// enqueue is the watch handler. Deleted objects are queued too so the worker
// can clear per-key state.
func (c *Controller[T, C]) enqueue(ev ChangeEvent[T]) {
	c.queue.Add(ev.Key)
}

// runWorker processes items from the queue.
func (c *Controller[T, C]) runWorker(ctx context.Context) {
	for c.processNextItem(ctx) {
	}
}

// processNextItem processes one item from the queue.
func (c *Controller[T, C]) processNextItem(ctx context.Context) bool {
	key, quit := c.queue.Get()
	if quit {
		return false
	}
	defer c.queue.Done(key)

	// A shut down queue still hands out what it holds.
	if ctx.Err() != nil {
		return false
	}

	c.reconcileKey(ctx, key)
	return true
}

// reconcileKey runs one reconciliation for key and schedules what comes next.
func (c *Controller[T, C]) reconcileKey(ctx context.Context, key string) {
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		clog.ErrorContext(ctx, "dropping invalid key", "key", key, "error", err)
		c.forget(key)
		return
	}
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("namespace", namespace, "name", name))

	obj, err := c.lister.GetByKey(key)
	if apierrors.IsNotFound(err) {
		clog.DebugContext(ctx, "object no longer exists")
		c.forget(key)
		return
	} else if err != nil {
		// Without an object there is nothing to hand to the error policy, so
		// this is the one failure retried by the rate limiter alone.
		clog.ErrorContext(ctx, "reading object from cache", "error", err)
		c.queue.AddRateLimited(key)
		return
	}

	clog.InfoContext(ctx, "reconciling", "state", c.gate.Classify(obj).String())
	start := time.Now()
	action, err := c.invoke(ctx, obj)
	c.metrics.observe(namespace, name, action, err, time.Since(start))

	if err != nil {
		c.handleError(ctx, key, obj, err)
		return
	}
	c.schedule(ctx, key, action)
}

// invoke runs the gate and the matching callback on obj. Callbacks get a
// context that survives controller shutdown, bounded by the reconcile
// timeout, so a patch is never abandoned halfway.
func (c *Controller[T, C]) invoke(ctx context.Context, obj T) (action Action, err error) {
	if obj.GetName() == "" {
		return Action{}, errNoName
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			action, err = Action{}, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return c.gate.Handle(ctx, obj, func(ctx context.Context, ev Event[T]) (Action, error) {
		switch ev.Kind {
		case Apply:
			return c.reconciler.ReconcileKind(ctx, ev.Object, c.shared)
		case Cleanup:
			return c.reconciler.FinalizeKind(ctx, ev.Object, c.shared)
		default:
			return Action{}, fmt.Errorf("unknown event kind %v", ev.Kind)
		}
	})
}

// handleError asks the error policy when to retry. Failures are always
// retried; a policy without an opinion falls back to the queue's rate limiter.
func (c *Controller[T, C]) handleError(ctx context.Context, key string, obj T, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		clog.ErrorContext(ctx, "reconciliation panicked", "error", err, "stack", string(pe.Stack))
	} else {
		clog.ErrorContext(ctx, "reconciliation failed", "error", err, "reason", Reason(err))
	}

	delay := c.policy.OnError(ctx, obj, err, c.shared)
	if delay <= 0 {
		clog.DebugContext(ctx, "requeueing with rate limiting")
		c.queue.AddRateLimited(key)
		return
	}
	clog.DebugContext(ctx, "requeueing after error", "delay", delay)
	c.queue.AddAfter(key, delay)
}

// schedule applies the Action of a successful reconciliation.
func (c *Controller[T, C]) schedule(ctx context.Context, key string, action Action) {
	c.forget(key)
	delay, requeue := action.Delay()
	switch {
	case !requeue:
		clog.InfoContext(ctx, "reconciled", "action", action.String())
	case delay > 0:
		clog.InfoContext(ctx, "reconciled, requeueing", "after", delay)
		c.queue.AddAfter(key, delay)
	default:
		clog.InfoContext(ctx, "reconciled, requeueing now")
		c.queue.Add(key)
	}
}

// forget clears retry state for key in the queue and in the error policy.
func (c *Controller[T, C]) forget(key string) {
	c.queue.Forget(key)
	if f, ok := c.policy.(Forgetter); ok {
		f.Forget(key)
	}
}

// Lister returns a read-only view of the controller's cache. It is nil until
// Run has synced the cache.
func (c *Controller[T, C]) Lister() *generic.Lister[T] {
	return c.lister
}
