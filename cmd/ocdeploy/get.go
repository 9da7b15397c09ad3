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

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/objectutil"
)

var getCmd = &cobra.Command{
	Use:   "get SERVICE",
	Short: "Get prints the DeploymentConfig of a service as stored by the API server.",
	Example: `  # Print the DeploymentConfig as YAML
  ocdeploy get frontend -n shop

  # Print the latest version of the DeploymentConfig
  ocdeploy get frontend -n shop -o json | jq .status.latestVersion
`,
	RunE: runGetCmd,
}

type getFlags struct {
	output string
}

var getArgs getFlags

func init() {
	getCmd.Flags().StringVarP(&getArgs.output, "output", "o", "yaml",
		"The output format, can be 'yaml' or 'json'.")
	rootCmd.AddCommand(getCmd)
}

func runGetCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify a service name")
	}

	var toText func(*unstructured.Unstructured) (string, error)
	switch getArgs.output {
	case "yaml":
		toText = objectutil.ObjectToYAML
	case "json":
		toText = objectutil.ObjectToJSON
	default:
		return fmt.Errorf("unsupported output format '%s', can be 'yaml' or 'json'", getArgs.output)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	client, err := newOpenShiftClient(ctx, args[0])
	if err != nil {
		return err
	}

	dc, err := client.GetDeploymentConfig(ctx)
	if err != nil {
		return err
	}

	text, err := toText(dc)
	if err != nil {
		return err
	}
	rootCmd.Print(text)
	return nil
}
