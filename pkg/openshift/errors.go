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
	"fmt"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

var (
	// ErrConfiguration is returned when the client is missing required settings.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAuth is returned when no bearer token could be obtained.
	ErrAuth = errors.New("authentication failed")

	// ErrAuthz is returned for 401 and 403 responses.
	ErrAuthz = errors.New("not authorized")

	// ErrNotFound is returned for 404 responses on resources that must exist.
	ErrNotFound = errors.New("not found")

	// ErrAPI is returned for any other non-2xx response.
	ErrAPI = errors.New("api error")

	// ErrTransport is returned when the HTTP round trip itself failed.
	ErrTransport = errors.New("transport error")

	// ErrInvalidUpdate is returned when an update document does not carry
	// the stored metadata and the next rollout version.
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrRolloutFailed is returned when at least one replica of the rollout failed.
	ErrRolloutFailed = errors.New("rollout failed")

	// ErrNoPods is returned when the pod list for a rollout is empty.
	ErrNoPods = fmt.Errorf("%w: no pods found", ErrAPI)
)

// StatusError is a failure reported by the platform through an HTTP status code.
type StatusError struct {
	// Op describes the operation, e.g. "get deploymentconfig myproject/frontend".
	Op string
	// Code is the HTTP status code.
	Code int
	// Message is the platform message, when the response carried one.
	Message string

	kind error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: received status %d", e.Op, e.Code)
	if e.Message != "" {
		msg += fmt.Sprintf(", openshift message: %s", e.Message)
	}
	return msg
}

// Unwrap returns the error kind, one of ErrAuthz, ErrNotFound or ErrAPI.
func (e *StatusError) Unwrap() error {
	return e.kind
}

// TransportError wraps a failed HTTP round trip.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// RolloutFailedError reports the number of failed replicas of a rollout.
type RolloutFailedError struct {
	Subject string
	Failed  int
}

func (e *RolloutFailedError) Error() string {
	return fmt.Sprintf("%s: [%d] replicas have failed deployment", e.Subject, e.Failed)
}

func (e *RolloutFailedError) Is(target error) bool {
	return target == ErrRolloutFailed
}

// IsRetryable returns true if the error is a transport failure that a
// polling loop may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound returns true if the platform reported 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// statusError maps a non-2xx response to the error taxonomy.
func statusError(op string, resp *Response) error {
	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrAuthz
	case http.StatusNotFound:
		kind = ErrNotFound
	default:
		kind = ErrAPI
	}

	return &StatusError{
		Op:      op,
		Code:    resp.StatusCode,
		Message: statusMessage(resp.Body),
		kind:    kind,
	}
}

// statusMessage extracts the message field of a metav1.Status body.
func statusMessage(body map[string]interface{}) string {
	if len(body) == 0 {
		return ""
	}

	status := &metav1.Status{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(body, status); err != nil {
		if msg, ok := body["message"].(string); ok {
			return msg
		}
		return ""
	}
	return status.Message
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
