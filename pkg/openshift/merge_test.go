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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func storedDeploymentConfig() *unstructured.Unstructured {
	dc := newDeploymentConfig("dev", "frontend", "nginx:1.21")
	dc.Object["metadata"] = map[string]interface{}{
		"name":              "frontend",
		"namespace":         "dev",
		"uid":               "3f1e6a2c-7c4b-4d5e-9f00-1a2b3c4d5e6f",
		"resourceVersion":   "1042",
		"generation":        int64(7),
		"creationTimestamp": "2021-06-01T00:00:00Z",
		"labels":            map[string]interface{}{"app": "frontend"},
	}
	dc.Object["status"] = map[string]interface{}{
		"latestVersion":   int64(4),
		"updatedReplicas": int64(2),
	}
	return dc
}

func TestMergeForUpdate(t *testing.T) {
	g := NewWithT(t)

	previous := storedDeploymentConfig()
	rendered := newDeploymentConfig("dev", "frontend", "nginx:1.22")
	rendered.Object["statusCode"] = int64(200)

	previousCopy := previous.DeepCopy()
	renderedCopy := rendered.DeepCopy()

	merged, err := MergeForUpdate(previous, rendered)
	g.Expect(err).NotTo(HaveOccurred())

	// inputs are left untouched
	if diff := cmp.Diff(previousCopy.Object, previous.Object); diff != "" {
		t.Errorf("previous was modified (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(renderedCopy.Object, rendered.Object); diff != "" {
		t.Errorf("rendered was modified (-want +got):\n%s", diff)
	}

	g.Expect(merged.GetUID()).To(Equal(previous.GetUID()))
	g.Expect(merged.GetResourceVersion()).To(Equal("1042"))
	g.Expect(merged.GetGeneration()).To(Equal(int64(7)))
	_, found, _ := unstructured.NestedFieldNoCopy(merged.Object, "metadata", "creationTimestamp")
	g.Expect(found).To(BeFalse())
	_, found, _ = unstructured.NestedFieldNoCopy(merged.Object, "spec", "template", "metadata", "creationTimestamp")
	g.Expect(found).To(BeFalse())
	g.Expect(merged.Object).NotTo(HaveKey("statusCode"))
	g.Expect(latestVersion(merged)).To(Equal(int64(5)))

	containers, _, _ := unstructured.NestedSlice(merged.Object, "spec", "template", "spec", "containers")
	g.Expect(containers[0]).To(HaveKeyWithValue("image", "nginx:1.22"))

	g.Expect(ValidateUpdate(previous, merged)).To(Succeed())

	// the merged metadata does not alias the previous object
	merged.SetLabels(map[string]string{"app": "changed"})
	g.Expect(previous.GetLabels()).To(HaveKeyWithValue("app", "frontend"))
}

func TestMergeForUpdate_NoPreviousVersion(t *testing.T) {
	g := NewWithT(t)

	previous := storedDeploymentConfig()
	delete(previous.Object, "status")

	merged, err := MergeForUpdate(previous, newDeploymentConfig("dev", "frontend", "nginx:1.22"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(latestVersion(merged)).To(Equal(int64(1)))
}

func TestMergeForUpdate_FloatVersion(t *testing.T) {
	g := NewWithT(t)

	previous := storedDeploymentConfig()
	previous.Object["status"] = map[string]interface{}{"latestVersion": float64(9)}

	merged, err := MergeForUpdate(previous, newDeploymentConfig("dev", "frontend", "nginx:1.22"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(latestVersion(merged)).To(Equal(int64(10)))
}

func TestValidateUpdate(t *testing.T) {
	stored := storedDeploymentConfig()
	valid, err := MergeForUpdate(stored, newDeploymentConfig("dev", "frontend", "nginx:1.22"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(doc *unstructured.Unstructured)
	}{
		{
			name: "same version",
			mutate: func(doc *unstructured.Unstructured) {
				_ = unstructured.SetNestedField(doc.Object, int64(4), "status", "latestVersion")
			},
		},
		{
			name: "version skipped",
			mutate: func(doc *unstructured.Unstructured) {
				_ = unstructured.SetNestedField(doc.Object, int64(6), "status", "latestVersion")
			},
		},
		{
			name: "version missing",
			mutate: func(doc *unstructured.Unstructured) {
				unstructured.RemoveNestedField(doc.Object, "status", "latestVersion")
			},
		},
		{
			name: "stale resource version",
			mutate: func(doc *unstructured.Unstructured) {
				doc.SetResourceVersion("1000")
			},
		},
		{
			name: "metadata missing",
			mutate: func(doc *unstructured.Unstructured) {
				delete(doc.Object, "metadata")
			},
		},
		{
			name: "creation timestamp",
			mutate: func(doc *unstructured.Unstructured) {
				_ = unstructured.SetNestedField(doc.Object, "2021-06-01T00:00:00Z", "metadata", "creationTimestamp")
			},
		},
		{
			name: "template creation timestamp",
			mutate: func(doc *unstructured.Unstructured) {
				_ = unstructured.SetNestedField(doc.Object, "2021-06-01T00:00:00Z", "spec", "template", "metadata", "creationTimestamp")
			},
		},
		{
			name: "status code",
			mutate: func(doc *unstructured.Unstructured) {
				doc.Object["statusCode"] = int64(200)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			doc := valid.DeepCopy()
			tt.mutate(doc)
			err := ValidateUpdate(stored, doc)
			g.Expect(errors.Is(err, ErrInvalidUpdate)).To(BeTrue(), "got %v", err)
		})
	}
}
