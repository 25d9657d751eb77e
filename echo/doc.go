// Package echo contains the Echo custom resource (pontifex.dev/v1) and the
// reconciler that echoes each resource's message once per change.
//
// Example:
//
//	apiVersion: pontifex.dev/v1
//	kind: Echo
//	metadata:
//	  name: hello
//	  namespace: default
//	spec:
//	  message: "hello, world"
//
// +kubebuilder:object:generate=true
// +groupName=pontifex.dev
package echo
