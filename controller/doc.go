// Package controller provides a generic, watch-driven reconciliation engine
// built on the generic client from github.com/imjasonh/echo-operator/generic.
//
// A Controller watches one resource collection, queues the namespace/name key
// of every object that changes and has a bounded pool of workers reconcile the
// keys. A key is never reconciled by two workers at once; events that arrive
// while it is in flight are coalesced into one more pass.
//
// # Basic Usage
//
// To create a controller, you need a generic client, a reconciler, an error
// policy and a shared context value:
//
//	client := generic.NewClient[*echo.Echo](echo.SchemeGroupVersion.WithResource("echos"), dyn)
//
//	ctrl, err := controller.New[*echo.Echo, echo.Context](client,
//	    controller.ReconcilerFuncs[*echo.Echo, echo.Context]{
//	        Reconcile: func(ctx context.Context, e *echo.Echo, c *echo.Context) (controller.Action, error) {
//	            // Drive e toward its spec.
//	            return controller.RequeueAfter(5 * time.Minute), nil
//	        },
//	    },
//	    controller.FixedBackoff[*echo.Echo, echo.Context](5*time.Second),
//	    &echo.Context{},
//	    &controller.Options{Finalizer: "echo.pontifex.dev/finalizer"})
//
//	err = ctrl.Run(ctx)
//
// # Finalizers
//
// Every object gets the controller's finalizer before it is reconciled for the
// first time. Objects marked for deletion are passed to FinalizeKind instead
// of ReconcileKind, and the finalizer is removed only once FinalizeKind
// succeeds, so cleanup is never skipped.
//
// # Actions and Errors
//
// A successful reconciliation returns an Action:
//
//	return controller.RequeueAfter(5 * time.Minute), nil // reconcile again later
//	return controller.NoRequeue(), nil                   // wait for the next change
//	return controller.AwaitChange(), nil                 // after cleanup
//
// A failed one is handed to the ErrorPolicy, which decides when to retry.
// Failures are always retried; there is no permanent error.
//
// # Status
//
// StatusPatcher sends partial status updates as merge patches to the status
// subresource. With a precondition, stale writes fail with a *ConflictError
// and are retried through the error policy.
package controller
