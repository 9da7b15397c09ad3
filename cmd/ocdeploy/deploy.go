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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raffs/ocdeploy/pkg/openshift"
	"github.com/raffs/ocdeploy/pkg/rollout"
)

var deployCmd = &cobra.Command{
	Use:   "deploy SERVICE",
	Short: "Deploy creates or updates the DeploymentConfig of a service.",
	Long: `The deploy command renders the DeploymentConfig of a service, checks that the API server
and the project are available, then creates the DeploymentConfig if the service does not exist
or replaces it otherwise. Each replacement increments the latest version and starts a new rollout.
With --wait, the command polls the pods of the rollout until all the replicas are ready.`,
	Example: `  # Deploy a service from a template and wait for the rollout
  ocdeploy deploy frontend -n shop -f ./Deployment.yml --vars ./vars/production.yml --wait

  # Deploy a service from a git repository laid out as <project>/<service>/Deployment.yml
  ocdeploy deploy frontend -n shop --git-repository https://git.example.com/ops/deploy.git -e production --wait

  # Deploy a service from an OCI artifact with an image tag given on the command line
  ocdeploy deploy frontend -n shop --artifact oci://ghcr.io/org/frontend:1.0.0 --set tag=1.21.6
`,
	RunE: runDeployCmd,
}

type deployFlags struct {
	renderFlags
	wait        bool
	interval    time.Duration
	maxAttempts int
}

var deployArgs deployFlags

func init() {
	addRenderFlags(deployCmd, &deployArgs.renderFlags)
	addWaitFlags(deployCmd, &deployArgs.wait, &deployArgs.interval, &deployArgs.maxAttempts)
	rootCmd.AddCommand(deployCmd)
}

func addWaitFlags(cmd *cobra.Command, wait *bool, interval *time.Duration, maxAttempts *int) {
	cmd.Flags().BoolVar(wait, "wait", false,
		"Wait for the replicas of the latest rollout to become ready.")
	cmd.Flags().DurationVar(interval, "interval", 0,
		"The time between two readiness checks, defaults to the config value.")
	cmd.Flags().IntVar(maxAttempts, "max-attempts", 0,
		"The number of readiness checks before giving up, defaults to the config value.")
}

func pollPolicy(interval time.Duration, maxAttempts int) rollout.PollPolicy {
	policy := rollout.PollPolicy{
		Interval:    cfg.Rollout.Interval.Duration,
		MaxAttempts: cfg.Rollout.MaxAttempts,
	}
	if interval > 0 {
		policy.Interval = interval
	}
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}
	return policy
}

func runDeployCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify a service name")
	}
	service := args[0]

	project, err := resolveProject()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	obj, err := renderDeploymentConfig(ctx, project, service, deployArgs.renderFlags)
	if err != nil {
		return err
	}

	client, err := newOpenShiftClient(ctx, service)
	if err != nil {
		return err
	}

	logger.Actionf("deploying %s to %s", service, client.Config().ServerURL)
	deployer := rollout.NewDeployer(client, project, service, logger.Logr())
	entry, err := deployer.Deploy(ctx, obj)
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	rootCmd.Println(entry.String())

	if !deployArgs.wait {
		return nil
	}

	policy := pollPolicy(deployArgs.interval, deployArgs.maxAttempts)
	logger.Actionf("waiting for %s/%s-%d to become ready", project, service, entry.LatestVersion)
	if err := rollout.Wait(ctx, openshift.NewReadinessWatcher(client), policy, logger.Logr()); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	logger.Successf("rollout completed")

	return nil
}
