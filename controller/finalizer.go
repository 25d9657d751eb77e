package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/generic"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// State is where an object stands in the finalizer lifecycle.
type State int

const (
	// Unmanaged objects are live and do not carry our finalizer yet.
	Unmanaged State = iota
	// Managed objects are live and carry our finalizer.
	Managed
	// Deleting objects are marked for deletion and still carry our finalizer.
	Deleting
	// Removed objects are marked for deletion and our finalizer is gone.
	Removed
)

func (s State) String() string {
	switch s {
	case Unmanaged:
		return "Unmanaged"
	case Managed:
		return "Managed"
	case Deleting:
		return "Deleting"
	case Removed:
		return "Removed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind tells a reconciliation which callback to run.
type EventKind int

const (
	// Apply drives a live object toward its spec.
	Apply EventKind = iota
	// Cleanup releases whatever the object holds before it is deleted.
	Cleanup
)

func (k EventKind) String() string {
	if k == Cleanup {
		return "Cleanup"
	}
	return "Apply"
}

// Event is one unit of work produced by the Gate.
type Event[T Object] struct {
	Kind   EventKind
	Object T
}

// Gate enforces the finalizer lifecycle around a reconciliation: it adds the
// controller's finalizer before the first Apply, routes deleting objects to
// Cleanup and removes the finalizer only after Cleanup succeeds. Finalizers
// owned by others are never touched.
type Gate[T Object] struct {
	client    generic.Client[T]
	finalizer string
}

// NewGate creates a Gate that manages the named finalizer.
func NewGate[T Object](client generic.Client[T], finalizer string) *Gate[T] {
	return &Gate[T]{client: client, finalizer: finalizer}
}

// Finalizer returns the finalizer identifier managed by the gate.
func (g *Gate[T]) Finalizer() string { return g.finalizer }

// Classify returns the lifecycle state of obj.
func (g *Gate[T]) Classify(obj T) State {
	has := controllerutil.ContainsFinalizer(obj, g.finalizer)
	deleting := obj.GetDeletionTimestamp() != nil
	switch {
	case deleting && has:
		return Deleting
	case deleting:
		return Removed
	case has:
		return Managed
	default:
		return Unmanaged
	}
}

// Handle runs fn for obj according to its lifecycle state.
//
//   - Unmanaged: the finalizer is added and AwaitChange is returned; the patch
//     produces a watch event that brings the object back as Managed.
//   - Managed: fn is called with an Apply event.
//   - Deleting: fn is called with a Cleanup event; if it succeeds the
//     finalizer is removed and fn's Action is returned.
//   - Removed: nothing to do, AwaitChange is returned.
//
// Failures to patch the finalizer list are returned as *FinalizerError.
func (g *Gate[T]) Handle(ctx context.Context, obj T, fn func(context.Context, Event[T]) (Action, error)) (Action, error) {
	switch state := g.Classify(obj); state {
	case Unmanaged:
		if err := g.addFinalizer(ctx, obj); err != nil {
			return Action{}, err
		}
		clog.DebugContext(ctx, "added finalizer", "finalizer", g.finalizer)
		return AwaitChange(), nil

	case Managed:
		return fn(ctx, Event[T]{Kind: Apply, Object: obj})

	case Deleting:
		action, err := fn(ctx, Event[T]{Kind: Cleanup, Object: obj})
		if err != nil {
			return Action{}, err
		}
		if err := g.removeFinalizer(ctx, obj); err != nil {
			return Action{}, err
		}
		clog.DebugContext(ctx, "removed finalizer", "finalizer", g.finalizer)
		return action, nil

	case Removed:
		clog.DebugContext(ctx, "deletion in progress and finalizer already removed, skipping")
		return AwaitChange(), nil

	default:
		return Action{}, fmt.Errorf("unexpected finalizer state %v", state)
	}
}

// jsonPatchOp is one RFC 6902 operation.
type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// addFinalizer appends our finalizer. The test operation makes the patch fail
// if the list changed since obj was read, since the API server does not
// deduplicate finalizers.
func (g *Gate[T]) addFinalizer(ctx context.Context, obj T) error {
	current := obj.GetFinalizers()
	var ops []jsonPatchOp
	if len(current) == 0 {
		ops = []jsonPatchOp{
			{Op: "test", Path: "/metadata/finalizers", Value: nil},
			{Op: "add", Path: "/metadata/finalizers", Value: []string{g.finalizer}},
		}
	} else {
		ops = []jsonPatchOp{
			{Op: "test", Path: "/metadata/finalizers", Value: current},
			{Op: "add", Path: "/metadata/finalizers/-", Value: g.finalizer},
		}
	}
	return g.patch(ctx, obj, FinalizerAdd, ops)
}

// removeFinalizer removes our finalizer, and only ours, by index.
func (g *Gate[T]) removeFinalizer(ctx context.Context, obj T) error {
	idx := slices.Index(obj.GetFinalizers(), g.finalizer)
	if idx < 0 {
		return nil
	}
	path := fmt.Sprintf("/metadata/finalizers/%d", idx)
	ops := []jsonPatchOp{
		{Op: "test", Path: path, Value: g.finalizer},
		{Op: "remove", Path: path},
	}
	return g.patch(ctx, obj, FinalizerRemove, ops)
}

func (g *Gate[T]) patch(ctx context.Context, obj T, op FinalizerOp, ops []jsonPatchOp) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return &FinalizerError{Op: op, Finalizer: g.finalizer, Err: err}
	}
	if _, err := g.client.Patch(ctx, obj.GetNamespace(), obj.GetName(), types.JSONPatchType, data); err != nil {
		return &FinalizerError{Op: op, Finalizer: g.finalizer, Err: err}
	}
	return nil
}
