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

// Package fakeapi serves an in-memory subset of the OpenShift REST API for tests.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	utiljson "k8s.io/apimachinery/pkg/util/json"
)

const (
	Username = "developer"
	Password = "developer"
	Token    = "sha256~fake-token"
)

// Server is an httptest server backed by in-memory projects,
// DeploymentConfigs and pods.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	projects map[string]bool
	dcs      map[string]map[string]interface{}
	pods     map[string][]corev1.Pod
	failures map[string]metav1.Status
	requests []string
	replicas int
	version  int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		projects: map[string]bool{},
		dcs:      map[string]map[string]interface{}{},
		pods:     map[string][]corev1.Pod{},
		failures: map[string]metav1.Status{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddProject registers a project.
func (s *Server) AddProject(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[name] = true
}

// AddDeploymentConfig stores a DeploymentConfig as if it was created by the server.
func (s *Server) AddDeploymentConfig(dc *unstructured.Unstructured) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(dc.GetNamespace(), dc.GetName(), dc.DeepCopy().Object, true)
}

// DeploymentConfig returns a copy of the stored object or nil.
func (s *Server) DeploymentConfig(namespace, name string) *unstructured.Unstructured {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.dcs[key(namespace, name)]
	if !ok {
		return nil
	}
	return (&unstructured.Unstructured{Object: obj}).DeepCopy()
}

// SetUpdatedReplicas sets status.updatedReplicas of a stored DeploymentConfig.
func (s *Server) SetUpdatedReplicas(namespace, name string, replicas int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.dcs[key(namespace, name)]; ok {
		_ = unstructured.SetNestedField(obj, replicas, "status", "updatedReplicas")
	}
}

// AddPods adds pods to a namespace.
func (s *Server) AddPods(namespace string, pods ...corev1.Pod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pods[namespace] = append(s.pods[namespace], pods...)
}

// AutoRollout makes every create and update of a DeploymentConfig start
// the given number of ready pods and report them as updated replicas.
func (s *Server) AutoRollout(replicas int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas = replicas
}

// Fail makes the server answer the method and path with the given status.
func (s *Server) Fail(method, path string, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusFailure,
		Message:  message,
		Code:     int32(code),
	}
}

// Requests returns the received requests formatted as "METHOD path?query".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Pod returns a pod created by the given rollout.
func Pod(name, deployment string, phase corev1.PodPhase, ready bool) corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return corev1.Pod{
		TypeMeta: metav1.TypeMeta{Kind: "Pod", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"deployment": deployment},
		},
		Status: corev1.PodStatus{
			Phase: phase,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: status},
			},
		},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())

	if r.URL.Path == "/oauth/authorize" {
		s.authorize(w, r)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if st, ok := s.failures[r.Method+" "+r.URL.Path]; ok {
		writeJSON(w, int(st.Code), st)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/oapi/v1/" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"kind":         "APIResourceList",
			"groupVersion": "v1",
		})
	case len(parts) == 4 && parts[0] == "oapi" && parts[2] == "projects" && r.Method == http.MethodGet:
		if !s.projects[parts[3]] {
			writeStatus(w, http.StatusNotFound, fmt.Sprintf("projects %q not found", parts[3]))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"kind":       "Project",
			"apiVersion": "v1",
			"metadata":   map[string]interface{}{"name": parts[3]},
		})
	case len(parts) == 5 && parts[0] == "oapi" && parts[2] == "namespaces" && parts[4] == "deploymentconfigs":
		s.createDeploymentConfig(w, r, parts[3])
	case len(parts) == 6 && parts[0] == "oapi" && parts[2] == "namespaces" && parts[4] == "deploymentconfigs":
		s.deploymentConfig(w, r, parts[3], parts[5])
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "namespaces" && parts[4] == "pods":
		s.listPods(w, r, parts[3])
	default:
		writeStatus(w, http.StatusNotFound, "the server could not find the requested resource")
	}
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != Username || pass != Password || r.Header.Get("X-CSRF-Token") == "" {
		writeStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	location := fmt.Sprintf("%s/oauth/token/implicit#access_token=%s&expires_in=86400&scope=user%%3Afull&token_type=Bearer",
		s.URL, Token)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

func (s *Server) deploymentConfig(w http.ResponseWriter, r *http.Request, ns, name string) {
	obj, ok := s.dcs[key(ns, name)]
	if !ok {
		writeStatus(w, http.StatusNotFound, fmt.Sprintf("deploymentconfigs %q not found", name))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, obj)
	case http.MethodPut:
		doc, err := readObject(r)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, err.Error())
			return
		}
		rv, _, _ := unstructured.NestedString(obj, "metadata", "resourceVersion")
		if got, _, _ := unstructured.NestedString(doc, "metadata", "resourceVersion"); got != rv {
			writeStatus(w, http.StatusConflict, fmt.Sprintf("the object has been modified, resourceVersion %q is stale", got))
			return
		}
		if ts, found, _ := unstructured.NestedFieldCopy(obj, "metadata", "creationTimestamp"); found {
			_ = unstructured.SetNestedField(doc, ts, "metadata", "creationTimestamp")
		}
		writeJSON(w, http.StatusOK, s.store(ns, name, doc, false))
	default:
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createDeploymentConfig(w http.ResponseWriter, r *http.Request, ns string) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	doc, err := readObject(r)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	name, _, _ := unstructured.NestedString(doc, "metadata", "name")
	if name == "" {
		writeStatus(w, http.StatusUnprocessableEntity, "metadata.name is required")
		return
	}
	if _, ok := s.dcs[key(ns, name)]; ok {
		writeStatus(w, http.StatusConflict, fmt.Sprintf("deploymentconfigs %q already exists", name))
		return
	}
	writeJSON(w, http.StatusCreated, s.store(ns, name, doc, true))
}

func (s *Server) listPods(w http.ResponseWriter, r *http.Request, ns string) {
	selector, err := labels.Parse(r.URL.Query().Get("labelSelector"))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	list := corev1.PodList{
		TypeMeta: metav1.TypeMeta{Kind: "PodList", APIVersion: "v1"},
		Items:    []corev1.Pod{},
	}
	for _, pod := range s.pods[ns] {
		if selector.Matches(labels.Set(pod.Labels)) {
			list.Items = append(list.Items, pod)
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// store saves the object with server-assigned metadata, the caller must hold the lock.
func (s *Server) store(ns, name string, obj map[string]interface{}, created bool) map[string]interface{} {
	s.version++
	u := &unstructured.Unstructured{Object: obj}
	u.SetNamespace(ns)
	u.SetName(name)
	u.SetResourceVersion(strconv.Itoa(s.version))
	if created {
		u.SetCreationTimestamp(metav1.NewTime(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))
		u.SetUID(types.UID(fmt.Sprintf("00000000-0000-0000-0000-%012d", s.version)))
		if _, found, _ := unstructured.NestedFieldNoCopy(obj, "status", "latestVersion"); !found {
			_ = unstructured.SetNestedField(obj, int64(1), "status", "latestVersion")
		}
	}
	s.dcs[key(ns, name)] = u.Object

	if s.replicas > 0 {
		version, _, _ := unstructured.NestedInt64(u.Object, "status", "latestVersion")
		deployment := fmt.Sprintf("%s-%d", name, version)
		for i := 0; i < s.replicas; i++ {
			pod := Pod(fmt.Sprintf("%s-%d", deployment, i), deployment, corev1.PodRunning, true)
			s.pods[ns] = append(s.pods[ns], pod)
		}
		_ = unstructured.SetNestedField(u.Object, int64(s.replicas), "status", "updatedReplicas")
	}

	return u.Object
}

func readObject(r *http.Request) (map[string]interface{}, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	obj := map[string]interface{}{}
	if err := utiljson.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func writeStatus(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusFailure,
		Message:  message,
		Code:     int32(code),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func key(ns, name string) string {
	return ns + "/" + name
}
