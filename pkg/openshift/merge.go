/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package openshift

import (
	"fmt"

	apiequality "k8s.io/apimachinery/pkg/api/equality"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// MergeForUpdate returns a new document built from the rendered spec and the
// stored server-assigned fields. The stored metadata is carried over without
// creationTimestamp, status.latestVersion is the stored value plus one and
// the stale creationTimestamp of the pod template is removed together with
// any statusCode field. Neither input is modified.
func MergeForUpdate(previous, rendered *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if previous == nil || rendered == nil {
		return nil, fmt.Errorf("%w: previous and rendered documents are required", ErrInvalidUpdate)
	}

	metadata, found, err := unstructured.NestedMap(previous.Object, "metadata")
	if err != nil {
		return nil, fmt.Errorf("%w: stored metadata: %v", ErrInvalidUpdate, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: stored document has no metadata", ErrInvalidUpdate)
	}
	delete(metadata, "creationTimestamp")

	version, _, err := int64Field(previous.Object, "status", "latestVersion")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	doc := rendered.DeepCopy()
	delete(doc.Object, "statusCode")
	unstructured.RemoveNestedField(doc.Object, "spec", "template", "metadata", "creationTimestamp")

	if err := unstructured.SetNestedMap(doc.Object, metadata, "metadata"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if err := unstructured.SetNestedField(doc.Object, version+1, "status", "latestVersion"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	return doc, nil
}

// ValidateUpdate checks that doc can replace stored: equal metadata without
// creationTimestamp, no pod template creationTimestamp,
// status.latestVersion one above the stored value and no statusCode field.
func ValidateUpdate(stored, doc *unstructured.Unstructured) error {
	if _, found := doc.Object["statusCode"]; found {
		return fmt.Errorf("%w: document carries a statusCode field", ErrInvalidUpdate)
	}
	if _, found, _ := unstructured.NestedFieldNoCopy(doc.Object, "metadata", "creationTimestamp"); found {
		return fmt.Errorf("%w: document carries metadata.creationTimestamp", ErrInvalidUpdate)
	}
	if _, found, _ := unstructured.NestedFieldNoCopy(doc.Object, "spec", "template", "metadata", "creationTimestamp"); found {
		return fmt.Errorf("%w: document carries spec.template.metadata.creationTimestamp", ErrInvalidUpdate)
	}

	storedMeta, err := objectMeta(stored)
	if err != nil {
		return fmt.Errorf("%w: stored metadata: %v", ErrInvalidUpdate, err)
	}
	docMeta, err := objectMeta(doc)
	if err != nil {
		return fmt.Errorf("%w: document metadata: %v", ErrInvalidUpdate, err)
	}
	storedMeta.CreationTimestamp = metav1.Time{}
	if !apiequality.Semantic.DeepEqual(storedMeta, docMeta) {
		return fmt.Errorf("%w: metadata differs from the stored metadata", ErrInvalidUpdate)
	}

	storedVersion, _, err := int64Field(stored.Object, "status", "latestVersion")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	version, found, err := int64Field(doc.Object, "status", "latestVersion")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if !found || version != storedVersion+1 {
		return fmt.Errorf("%w: status.latestVersion must be %d, got %d", ErrInvalidUpdate, storedVersion+1, version)
	}

	return nil
}

func objectMeta(obj *unstructured.Unstructured) (*metav1.ObjectMeta, error) {
	m, found, err := unstructured.NestedMap(obj.Object, "metadata")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("metadata not found")
	}

	meta := &metav1.ObjectMeta{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(m, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func latestVersion(obj *unstructured.Unstructured) int64 {
	v, _, _ := int64Field(obj.Object, "status", "latestVersion")
	return v
}

// int64Field reads an integer field that may have been decoded as int64 or float64.
func int64Field(obj map[string]interface{}, fields ...string) (int64, bool, error) {
	val, found, err := unstructured.NestedFieldNoCopy(obj, fields...)
	if err != nil || !found || val == nil {
		return 0, false, err
	}

	switch v := val.(type) {
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, true, fmt.Errorf("%v is not an integer", fields)
		}
		return int64(v), true, nil
	default:
		return 0, true, fmt.Errorf("%v accessor error: %v is of the type %T, expected int64", fields, val, val)
	}
}
