/*
Copyright 2021 Stefan Prodan
Copyright 2021 The Flux authors

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

package objectutil

import (
	"encoding/json"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// ReadObjects decodes the YAML or JSON documents from the given reader into
// unstructured objects. Lists are expanded and empty documents are skipped.
func ReadObjects(r io.Reader) ([]*unstructured.Unstructured, error) {
	reader := yamlutil.NewYAMLOrJSONDecoder(r, 2048)
	objects := make([]*unstructured.Unstructured, 0)

	for {
		obj := &unstructured.Unstructured{}
		err := reader.Decode(obj)
		if err != nil {
			if err == io.EOF {
				break
			}
			return objects, err
		}

		if len(obj.Object) == 0 {
			continue
		}

		if obj.IsList() {
			err = obj.EachListItem(func(item apiruntime.Object) error {
				objects = append(objects, item.(*unstructured.Unstructured))
				return nil
			})
			if err != nil {
				return objects, err
			}
			continue
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

// ReadDeploymentConfig decodes the documents from the given reader and
// returns the single DeploymentConfig found among them.
func ReadDeploymentConfig(r io.Reader) (*unstructured.Unstructured, error) {
	objects, err := ReadObjects(r)
	if err != nil {
		return nil, fmt.Errorf("decoding objects failed: %w", err)
	}

	var result *unstructured.Unstructured
	for _, obj := range objects {
		if !IsDeploymentConfig(obj) {
			continue
		}
		if result != nil {
			return nil, fmt.Errorf("found more than one %s: %s, %s",
				DeploymentConfigKind, FmtUnstructured(result), FmtUnstructured(obj))
		}
		result = obj
	}

	if result == nil {
		return nil, fmt.Errorf("no %s found in %d object(s)", DeploymentConfigKind, len(objects))
	}
	return result, nil
}

// ObjectToYAML encodes the given object to YAML.
func ObjectToYAML(obj *unstructured.Unstructured) (string, error) {
	data, err := yaml.Marshal(obj.Object)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ObjectToJSON encodes the given object to indented JSON.
func ObjectToJSON(obj *unstructured.Unstructured) (string, error) {
	data, err := json.MarshalIndent(obj.Object, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
