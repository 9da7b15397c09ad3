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

package render

import (
	"bytes"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/objectutil"
)

// DeploymentConfig decodes the rendered output and returns its single
// DeploymentConfig with the server-assigned fields removed.
func DeploymentConfig(data []byte) (*unstructured.Unstructured, error) {
	dc, err := objectutil.ReadDeploymentConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rendered output: %w", err)
	}

	unstructured.RemoveNestedField(dc.Object, "status")
	unstructured.RemoveNestedField(dc.Object, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(dc.Object, "metadata", "resourceVersion")
	unstructured.RemoveNestedField(dc.Object, "metadata", "uid")
	return dc, nil
}
