package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imjasonh/echo-operator/generic"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
)

// StatusPatchOptions configures a StatusPatcher.
type StatusPatchOptions struct {
	// Precondition makes every patch carry the resourceVersion of the object
	// it was computed from, so a write based on stale state is rejected with a
	// conflict instead of being merged.
	Precondition bool
}

// StatusPatcher writes partial status updates to the status subresource.
// Fields absent from the delta are left as they are on the server; the spec
// is never touched.
type StatusPatcher[T Object] struct {
	client generic.Client[T]
	opts   StatusPatchOptions
}

// NewStatusPatcher creates a StatusPatcher.
func NewStatusPatcher[T Object](client generic.Client[T], opts StatusPatchOptions) *StatusPatcher[T] {
	return &StatusPatcher[T]{client: client, opts: opts}
}

// Patch merges delta into obj's status. delta is any value that marshals to a
// JSON object; a nil field inside it removes that field.
//
// Conflicts are returned as *ConflictError and are not retried here.
func (p *StatusPatcher[T]) Patch(ctx context.Context, obj T, delta any) error {
	if obj.GetName() == "" {
		return errNoName
	}

	body := map[string]any{"status": delta}
	if p.opts.Precondition {
		body["metadata"] = map[string]any{"resourceVersion": obj.GetResourceVersion()}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling status patch: %w", err)
	}

	if _, err := p.client.Patch(ctx, obj.GetNamespace(), obj.GetName(), types.MergePatchType, data, "status"); err != nil {
		if apierrors.IsConflict(err) {
			return &ConflictError{Namespace: obj.GetNamespace(), Name: obj.GetName(), Err: err}
		}
		return fmt.Errorf("patching status of %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}
	return nil
}
