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

package rollout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/raffs/ocdeploy/pkg/openshift"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 120
)

// ErrTimeout is returned when the rollout did not converge within the poll policy.
var ErrTimeout = errors.New("timeout waiting for rollout")

// ReadinessChecker reports whether the latest rollout is still in progress,
// it is implemented by openshift.ReadinessWatcher.
type ReadinessChecker interface {
	IsNotReady(ctx context.Context) (bool, error)
}

// PollPolicy bounds the polling loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy checks every 5 seconds for up to 10 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

func (p PollPolicy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", openshift.ErrConfiguration, p.Interval)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", openshift.ErrConfiguration, p.MaxAttempts)
	}
	return nil
}

// TimeoutError is returned when the attempts of a poll policy are exhausted.
type TimeoutError struct {
	Attempts int
	Interval time.Duration
	// LastErr is the retryable error of the last attempt, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s after %d attempts every %s", ErrTimeout, e.Attempts, e.Interval)
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Wait calls the checker until the rollout converges or the attempts run out.
// Transport failures and rollouts without pods are retried, any other error
// ends the loop. A cancelled context stops scheduling further checks.
func Wait(ctx context.Context, checker ReadinessChecker, policy PollPolicy, log logr.Logger) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	backoff := wait.Backoff{
		Duration: policy.Interval,
		Factor:   1,
		Steps:    policy.MaxAttempts,
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := 0
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func() (bool, error) {
		attempts++
		notReady, err := checker.IsNotReady(ctx)
		if err != nil {
			if openshift.IsRetryable(err) || errors.Is(err, openshift.ErrNoPods) {
				lastErr = err
				log.V(1).Info("rollout not observable yet", "attempt", attempts, "error", err.Error())
				return false, nil
			}
			return false, err
		}

		lastErr = nil
		log.V(1).Info("rollout status", "attempt", attempts, "ready", !notReady)
		return !notReady, nil
	})

	if errors.Is(err, wait.ErrWaitTimeout) {
		return &TimeoutError{Attempts: attempts, Interval: policy.Interval, LastErr: lastErr}
	}
	return err
}
