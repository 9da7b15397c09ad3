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

package objectutil

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const multiDoc = `---
apiVersion: v1
kind: Service
metadata:
  name: frontend
spec:
  ports:
  - port: 80
---
---
apiVersion: apps.openshift.io/v1
kind: DeploymentConfig
metadata:
  name: frontend
spec:
  replicas: 2
  template:
    metadata:
      labels:
        app: frontend
`

func TestReadDeploymentConfig(t *testing.T) {
	g := NewWithT(t)

	dc, err := ReadDeploymentConfig(strings.NewReader(multiDoc))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dc.GetName()).To(Equal("frontend"))
	g.Expect(FmtUnstructured(dc)).To(Equal("DeploymentConfig/frontend"))

	replicas, _, _ := unstructured.NestedInt64(dc.Object, "spec", "replicas")
	g.Expect(replicas).To(Equal(int64(2)))

	dc.SetNamespace("dev")
	g.Expect(FmtUnstructured(dc)).To(Equal("DeploymentConfig/dev/frontend"))

	out, err := ObjectToYAML(dc)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(ContainSubstring("kind: DeploymentConfig"))
	g.Expect(out).To(ContainSubstring("namespace: dev"))

	js, err := ObjectToJSON(dc)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(js).To(ContainSubstring(`"kind": "DeploymentConfig"`))
}

func TestReadDeploymentConfig_Errors(t *testing.T) {
	g := NewWithT(t)

	_, err := ReadDeploymentConfig(strings.NewReader(multiDoc + "---\n" + multiDoc))
	g.Expect(err).To(MatchError(ContainSubstring("more than one DeploymentConfig")))

	_, err = ReadDeploymentConfig(strings.NewReader("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm\n"))
	g.Expect(err).To(MatchError(ContainSubstring("no DeploymentConfig found in 1 object(s)")))

	_, err = ReadDeploymentConfig(strings.NewReader("kind: [DeploymentConfig"))
	g.Expect(err).To(HaveOccurred())
}

func TestReadObjects_List(t *testing.T) {
	g := NewWithT(t)

	list := `{"apiVersion":"v1","kind":"List","items":[
  {"apiVersion":"v1","kind":"DeploymentConfig","metadata":{"name":"a"}},
  {"apiVersion":"v1","kind":"Service","metadata":{"name":"a"}}
]}`
	objects, err := ReadObjects(strings.NewReader(list))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(objects).To(HaveLen(2))
	g.Expect(IsDeploymentConfig(objects[0])).To(BeTrue())
	g.Expect(IsDeploymentConfig(objects[1])).To(BeFalse())
}
