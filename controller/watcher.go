package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/generic"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/cache"
)

// EventType is the kind of change the watcher observed.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
)

// ChangeEvent is one notification from the watcher. Object is the latest
// known state; for Deleted events it may be the last state before removal.
type ChangeEvent[T Object] struct {
	Type   EventType
	Key    string
	Object T
}

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Namespace limits the watch to one namespace. Empty watches all of them.
	Namespace string

	// ResyncPeriod is how often every cached object is replayed as Modified.
	// Zero disables resync.
	ResyncPeriod time.Duration
}

// Watcher keeps a local cache of a resource collection in sync with the
// cluster and reports every change to a handler.
//
// Disconnects are retried by the underlying reflector; after a reconnect the
// full list is replayed, so handlers see Modified events for objects that did
// not actually change.
type Watcher[T Object] struct {
	client generic.Client[T]
	opts   WatchOptions
}

// NewWatcher creates a Watcher.
func NewWatcher[T Object](client generic.Client[T], opts WatchOptions) *Watcher[T] {
	return &Watcher[T]{client: client, opts: opts}
}

// Watch starts the watch and blocks until the initial list has been cached.
// The handler is called from a single goroutine and must not block. The
// returned Lister reads from the cache, which stays current until ctx ends.
func (w *Watcher[T]) Watch(ctx context.Context, handler func(ChangeEvent[T])) (*generic.Lister[T], error) {
	gvr := w.client.GVR()
	informer := w.client.Informer(w.opts.Namespace, w.opts.ResyncPeriod)
	inf := informer.Informer()

	if err := inf.SetWatchErrorHandler(func(_ *cache.Reflector, err error) {
		clog.WarnContext(ctx, "watch error, retrying", "resource", gvr.String(), "error", err)
	}); err != nil {
		return nil, fmt.Errorf("setting watch error handler: %w", err)
	}

	if _, err := inf.AddEventHandler(w.eventHandler(ctx, handler)); err != nil {
		return nil, fmt.Errorf("adding event handler: %w", err)
	}

	go inf.Run(ctx.Done())

	if !cache.WaitForNamedCacheSync(gvr.String(), ctx.Done(), inf.HasSynced) {
		return nil, fmt.Errorf("waiting for %s cache to sync: %w", gvr.String(), context.Cause(ctx))
	}
	clog.InfoContext(ctx, "cache synced", "resource", gvr.String(), "namespace", w.opts.Namespace)

	return generic.NewLister[T](inf.GetIndexer(), gvr.GroupResource()), nil
}

// eventHandler translates informer notifications into ChangeEvents.
// Tombstones left by a missed delete are unwrapped; the key is taken from the
// tombstone itself.
func (w *Watcher[T]) eventHandler(ctx context.Context, handler func(ChangeEvent[T])) cache.ResourceEventHandlerFuncs {
	gvr := w.client.GVR()
	emit := func(typ EventType, obj any) {
		key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
		if err != nil {
			clog.WarnContext(ctx, "ignoring object without a key", "resource", gvr.String(), "error", err)
			return
		}
		if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			obj = tombstone.Obj
		}
		ev := ChangeEvent[T]{Type: typ, Key: key}
		if typed, err := objectFromCache[T](obj); err == nil {
			ev.Object = typed
		} else {
			clog.DebugContext(ctx, "event without a usable object", "key", key, "error", err)
		}
		handler(ev)
	}
	return cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { emit(Added, obj) },
		UpdateFunc: func(_, obj any) { emit(Modified, obj) },
		DeleteFunc: func(obj any) { emit(Deleted, obj) },
	}
}

func objectFromCache[T Object](obj any) (T, error) {
	ro, ok := obj.(runtime.Object)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected object type %T", obj)
	}
	return generic.Convert[T](ro)
}
