package echo

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/controller"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/record"
)

const (
	// echoedRequeue is how long to wait before checking an Echo that was just
	// echoed.
	echoedRequeue = 300 * time.Second

	// settledRequeue is how long to wait before checking an Echo whose
	// message was already echoed.
	settledRequeue = 5 * time.Minute

	// DefaultErrorBackoff is the retry delay after a failed reconciliation.
	DefaultErrorBackoff = 5 * time.Second
)

// Context is shared by every reconciliation.
type Context struct {
	// Status writes Echo status.
	Status *controller.StatusPatcher[*Echo]

	// Recorder emits Kubernetes events. Optional.
	Recorder record.EventRecorder

	// Out receives the echoed messages. Defaults to os.Stdout.
	Out io.Writer
}

func (c *Context) out() io.Writer {
	if c == nil || c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) event(obj *Echo, eventtype, reason, messageFmt string, args ...any) {
	if c != nil && c.Recorder != nil {
		c.Recorder.Eventf(obj, eventtype, reason, messageFmt, args...)
	}
}

// Reconciler echoes the message of every Echo once per change and records
// that in its status.
type Reconciler struct{}

var _ controller.Reconciler[*Echo, Context] = Reconciler{}

// ReconcileKind implements controller.Reconciler.
func (Reconciler) ReconcileKind(ctx context.Context, e *Echo, c *Context) (controller.Action, error) {
	clog.InfoContext(ctx, "reconciling echo")

	if e.AlreadyEchoed() {
		fmt.Fprintf(c.out(), "Echo: %s has already been echoed.\n", e.Name)
		return controller.RequeueAfter(settledRequeue), nil
	}

	fmt.Fprintf(c.out(), "Echoing message: %s\n", e.Spec.Message)

	message := e.Spec.Message
	if err := c.Status.Patch(ctx, e, EchoStatus{
		Echoed:        true,
		EchoedMessage: &message,
	}); err != nil {
		return controller.Action{}, err
	}
	c.event(e, corev1.EventTypeNormal, "Echoed", "Echoed message %q", message)

	return controller.RequeueAfter(echoedRequeue), nil
}

// FinalizeKind implements controller.Reconciler. Echo holds nothing outside
// the cluster, so there is nothing to release.
func (Reconciler) FinalizeKind(ctx context.Context, _ *Echo, _ *Context) (controller.Action, error) {
	clog.InfoContext(ctx, "cleaning up echo")
	return controller.AwaitChange(), nil
}

// ErrorPolicy logs a failed reconciliation, records a warning event and
// retries after Backoff.
type ErrorPolicy struct {
	// Backoff is the retry delay. Defaults to DefaultErrorBackoff.
	Backoff time.Duration
}

var _ controller.ErrorPolicy[*Echo, Context] = ErrorPolicy{}

// OnError implements controller.ErrorPolicy.
func (p ErrorPolicy) OnError(ctx context.Context, e *Echo, err error, c *Context) time.Duration {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	clog.ErrorContext(ctx, "reconciliation error occurred", "error", err, "reason", controller.Reason(err), "retry_after", backoff)
	c.event(e, corev1.EventTypeWarning, "ReconcileError", "Reconciliation failed: %v", err)
	return backoff
}
