package echo

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// Kind is the kind of the Echo resource.
	Kind = "Echo"

	// Finalizer guards Echo objects until their cleanup has run.
	Finalizer = "echo.pontifex.dev/finalizer"
)

// EchoSpec defines the desired state of Echo
type EchoSpec struct {
	// Message is printed by the operator every time it changes.
	Message string `json:"message"`
}

// EchoStatus defines the observed state of Echo
type EchoStatus struct {
	// EchoedMessage is the last message that was echoed.
	// +optional
	// +nullable
	EchoedMessage *string `json:"echoed_message,omitempty"`

	// Echoed reports whether a message has been echoed at all.
	Echoed bool `json:"echoed"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Echo is the Schema for the echos API
type Echo struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   EchoSpec    `json:"spec"`
	Status *EchoStatus `json:"status,omitempty"`
}

// AlreadyEchoed reports whether the current message has been echoed.
func (e *Echo) AlreadyEchoed() bool {
	s := e.Status
	return s != nil && s.Echoed && s.EchoedMessage != nil && *s.EchoedMessage == e.Spec.Message
}

// +kubebuilder:object:root=true

// EchoList contains a list of Echo
type EchoList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Echo `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Echo{}, &EchoList{})
}
