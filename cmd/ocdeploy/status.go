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
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/openshift"
	"github.com/raffs/ocdeploy/pkg/rollout"
)

var statusCmd = &cobra.Command{
	Use:   "status SERVICE",
	Short: "Status prints the pods of the latest rollout of a service.",
	Long: `The status command lists the pods of the latest rollout of a service and reports
how many replicas are pending, ready and failed.
With --wait, the command first polls the rollout until all the replicas are ready.`,
	Example: `  # Print the pods of the latest rollout
  ocdeploy status frontend -n shop

  # Wait up to one minute for the rollout to become ready
  ocdeploy status frontend -n shop --wait --interval 5s --max-attempts 12
`,
	RunE: runStatusCmd,
}

type statusFlags struct {
	wait        bool
	interval    time.Duration
	maxAttempts int
}

var statusArgs statusFlags

func init() {
	addWaitFlags(statusCmd, &statusArgs.wait, &statusArgs.interval, &statusArgs.maxAttempts)
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify a service name")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	client, err := newOpenShiftClient(ctx, args[0])
	if err != nil {
		return err
	}

	if statusArgs.wait {
		policy := pollPolicy(statusArgs.interval, statusArgs.maxAttempts)
		if err := rollout.Wait(ctx, openshift.NewReadinessWatcher(client), policy, logger.Logr()); err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
	}

	dc, err := client.GetDeploymentConfig(ctx)
	if err != nil {
		return err
	}

	latest, err := openshift.RolloutOf(dc)
	if err != nil {
		return err
	}

	pods, err := client.ListPods(ctx, latest.Namespace, latest.Selector())
	if err != nil {
		return err
	}

	var rows [][]string
	for _, pod := range pods.Items {
		rows = append(rows, []string{pod.Name, string(pod.Status.Phase), strconv.FormatBool(podReady(pod))})
	}
	printTable(rootCmd.OutOrStdout(), []string{"pod", "phase", "ready"}, rows)

	updated, found, err := unstructured.NestedInt64(dc.Object, "status", "updatedReplicas")
	if err != nil || !found {
		updated = -1
	}
	tally := openshift.TallyPods(pods.Items, updated)
	switch {
	case tally.Failed > 0:
		return &openshift.RolloutFailedError{Subject: latest.String(), Failed: tally.Failed}
	case len(pods.Items) > 0 && tally.Converged():
		logger.Successf("%s is ready, %s", latest, tally)
	default:
		logger.Actionf("%s is in progress, %s", latest, tally)
	}

	return nil
}

func podReady(pod corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
