package echo

//go:generate go run ../hack/crdgen -o ../config/crd/echo-crd.yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// CustomResourceDefinition returns the CRD that serves Echo objects.
func CustomResourceDefinition() *apiextensionsv1.CustomResourceDefinition {
	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: Resource.Resource + "." + SchemeGroupVersion.Group,
		},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: SchemeGroupVersion.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:   Resource.Resource,
				Singular: "echo",
				Kind:     Kind,
				ListKind: Kind + "List",
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{{
				Name:    SchemeGroupVersion.Version,
				Served:  true,
				Storage: true,
				Subresources: &apiextensionsv1.CustomResourceSubresources{
					Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
				},
				AdditionalPrinterColumns: []apiextensionsv1.CustomResourceColumnDefinition{
					{Name: "Message", Type: "string", JSONPath: ".spec.message"},
					{Name: "Echoed", Type: "boolean", JSONPath: ".status.echoed"},
				},
				Schema: &apiextensionsv1.CustomResourceValidation{
					OpenAPIV3Schema: openAPISchema(),
				},
			}},
		},
	}
}

func openAPISchema() *apiextensionsv1.JSONSchemaProps {
	return &apiextensionsv1.JSONSchemaProps{
		Description: "Echo is the Schema for the echos API",
		Type:        "object",
		Required:    []string{"spec"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"spec": {
				Description: "EchoSpec defines the desired state of Echo",
				Type:        "object",
				Required:    []string{"message"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"message": {
						Description: "Message is printed by the operator every time it changes.",
						Type:        "string",
					},
				},
			},
			"status": {
				Description: "EchoStatus defines the observed state of Echo",
				Type:        "object",
				Nullable:    true,
				Required:    []string{"echoed"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"echoed": {
						Description: "Echoed reports whether a message has been echoed at all.",
						Type:        "boolean",
					},
					"echoed_message": {
						Description: "EchoedMessage is the last message that was echoed.",
						Type:        "string",
						Nullable:    true,
					},
				},
			},
		},
	}
}

// MarshalCustomResourceDefinition renders the Echo CRD as YAML.
func MarshalCustomResourceDefinition() ([]byte, error) {
	b, err := yaml.Marshal(CustomResourceDefinition())
	if err != nil {
		return nil, fmt.Errorf("marshaling CRD: %w", err)
	}
	return b, nil
}

// WriteCustomResourceDefinition writes the Echo CRD to path, unless the file
// already holds exactly that content. It reports whether the file was written.
func WriteCustomResourceDefinition(path string) (bool, error) {
	want, err := MarshalCustomResourceDefinition()
	if err != nil {
		return false, err
	}

	got, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(got, want):
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
