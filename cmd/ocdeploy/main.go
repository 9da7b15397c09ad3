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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"

	"github.com/raffs/ocdeploy/pkg/config"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "ocdeploy"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to render, deploy and watch OpenShift DeploymentConfigs.",
	Long: `ocdeploy renders a DeploymentConfig template, creates or updates it on an OpenShift
cluster and waits for the rollout to become ready.

Render and deploy a service:

- ocdeploy render <service> -n <project> -f <template> [--vars <file>] [--set key=value]
- ocdeploy deploy <service> -n <project> -f <template> [--vars <file>] [--set key=value] --wait
- ocdeploy deploy <service> -n <project> --git-repository <url> -e <environment> --wait
- ocdeploy deploy <service> -n <project> --artifact oci://<image-url>:<tag> --wait

Inspect a service:

- ocdeploy check <service> -n <project>
- ocdeploy get <service> -n <project> -o yaml
- ocdeploy status <service> -n <project> [--wait]

Distribute deployment templates as OCI artifacts:

- ocdeploy push artifact oci://<image-url>:<tag> -f <template>
- ocdeploy list artifacts oci://<image-url> [--semver <condition>]
`,
}

type rootFlags struct {
	timeout time.Duration
	verbose bool
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 15*time.Minute,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.verbose, "verbose", false,
		"Print the API calls and the rollout progress.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.Username = new(string)
	kubeconfigArgs.Password = new(string)
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	project := ""
	kubeconfigArgs.Namespace = &project
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n", *kubeconfigArgs.Namespace,
		"The OpenShift project, defaults to the namespace of the current kubeconfig context.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	loadConfig()
	if err := rootCmd.Execute(); err != nil {
		logger.Failuref("%v", err)
		os.Exit(1)
	}
}

func loadConfig() {
	if c, err := config.Read(""); err != nil {
		logger.Failuref("%v", fmt.Errorf("loading the config failed, error: %w", err))
	} else {
		cfg = c
	}
}
