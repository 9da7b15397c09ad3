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
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
)

// DeploymentLabel is the pod label set by the platform to the
// {name}-{latestVersion} of the rollout that created the pod.
const DeploymentLabel = "deployment"

// RolloutReader reads the state of a rollout, it is implemented by Client.
type RolloutReader interface {
	GetDeploymentConfig(ctx context.Context) (*unstructured.Unstructured, error)
	ListPods(ctx context.Context, namespace, selector string) (*corev1.PodList, error)
}

// ReadinessTally holds the pod counters of a rollout.
type ReadinessTally struct {
	Pending int
	Ready   int
	Failed  int
	// Updated is the server status.updatedReplicas, -1 when not yet reported.
	Updated int64
}

// Converged returns true when no replica is pending or failed and the
// ready count matches the updated replicas.
func (t ReadinessTally) Converged() bool {
	return t.Pending == 0 && t.Failed == 0 && int64(t.Ready) == t.Updated
}

func (t ReadinessTally) String() string {
	return fmt.Sprintf("pending %d, ready %d, failed %d, updated %d", t.Pending, t.Ready, t.Failed, t.Updated)
}

// ReadinessWatcher computes the convergence of the latest rollout.
// It holds no state between calls.
type ReadinessWatcher struct {
	reader RolloutReader
}

// NewReadinessWatcher returns a watcher backed by the given reader.
func NewReadinessWatcher(reader RolloutReader) *ReadinessWatcher {
	return &ReadinessWatcher{reader: reader}
}

// Rollout identifies the pods of a DeploymentConfig version.
type Rollout struct {
	Namespace     string
	Name          string
	LatestVersion int64
}

// Selector returns the label selector of the rollout pods.
func (r Rollout) Selector() string {
	return labels.SelectorFromSet(labels.Set{
		DeploymentLabel: fmt.Sprintf("%s-%d", r.Name, r.LatestVersion),
	}).String()
}

func (r Rollout) String() string {
	return fmt.Sprintf("%s/%s-%d", r.Namespace, r.Name, r.LatestVersion)
}

// RolloutOf extracts the namespace, name and latest version of a DeploymentConfig.
func RolloutOf(dc *unstructured.Unstructured) (Rollout, error) {
	ns, _, _ := unstructured.NestedString(dc.Object, "metadata", "namespace")
	name, _, _ := unstructured.NestedString(dc.Object, "metadata", "name")
	if ns == "" || name == "" {
		return Rollout{}, fmt.Errorf("%w: deploymentconfig has no metadata.namespace or metadata.name", ErrAPI)
	}

	version, found, err := int64Field(dc.Object, "status", "latestVersion")
	if err != nil {
		return Rollout{}, fmt.Errorf("%w: deploymentconfig %s/%s: %v", ErrAPI, ns, name, err)
	}
	if !found {
		return Rollout{}, fmt.Errorf("%w: deploymentconfig %s/%s has no status.latestVersion", ErrAPI, ns, name)
	}

	return Rollout{Namespace: ns, Name: name, LatestVersion: version}, nil
}

// Tally fetches the DeploymentConfig and the pods of its latest version and
// counts them. An empty pod list is reported as ErrNoPods and a failed replica
// as a RolloutFailedError; in both cases the tally is returned as computed.
func (w *ReadinessWatcher) Tally(ctx context.Context) (ReadinessTally, error) {
	tally := ReadinessTally{Updated: -1}

	dc, err := w.reader.GetDeploymentConfig(ctx)
	if err != nil {
		return tally, err
	}

	rollout, err := RolloutOf(dc)
	if err != nil {
		return tally, err
	}

	pods, err := w.reader.ListPods(ctx, rollout.Namespace, rollout.Selector())
	if err != nil {
		return tally, err
	}

	if updated, found, err := int64Field(dc.Object, "status", "updatedReplicas"); err == nil && found {
		tally.Updated = updated
	}

	if len(pods.Items) == 0 {
		return tally, fmt.Errorf("%s: %w", rollout, ErrNoPods)
	}

	counted := TallyPods(pods.Items, tally.Updated)
	if counted.Failed > 0 {
		return counted, &RolloutFailedError{Subject: rollout.String(), Failed: counted.Failed}
	}

	return counted, nil
}

// IsNotReady returns false once the latest rollout has converged.
func (w *ReadinessWatcher) IsNotReady(ctx context.Context) (bool, error) {
	tally, err := w.Tally(ctx)
	if err != nil {
		return true, err
	}
	return !tally.Converged(), nil
}

// TallyPods counts the pods by phase. Running pods count as ready only with
// the Ready condition set to True, pods in any other phase are ignored.
func TallyPods(pods []corev1.Pod, updated int64) ReadinessTally {
	tally := ReadinessTally{Updated: updated}
	for _, pod := range pods {
		switch pod.Status.Phase {
		case corev1.PodPending:
			tally.Pending++
		case corev1.PodRunning:
			if isPodReady(pod) {
				tally.Ready++
			}
		case corev1.PodFailed:
			tally.Failed++
		}
	}
	return tally
}

func isPodReady(pod corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
