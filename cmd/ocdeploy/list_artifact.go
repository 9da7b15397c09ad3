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
	"strings"

	"github.com/spf13/cobra"

	"github.com/raffs/ocdeploy/pkg/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List prints the versions of the published deployment templates.",
}

var listArtifactCmd = &cobra.Command{
	Use:     "artifact",
	Aliases: []string{"artifacts"},
	Short:   "List the versions of an OCI artifact.",
	Long: `The list command fetches the tags of the specified OCI artifact from its image repository.
If a semantic version condition is specified, the tags are filtered and ordered by semver.
For private registries, the list command uses the credentials from '~/.docker/config.json'.`,
	Example: `  ocdeploy list artifacts <oci repository url> --semver <condition>

  # List all versions ordered by semver
  ocdeploy list artifacts oci://docker.io/user/repo --semver="*"

  # List all versions in the 1.0 range
  ocdeploy list artifacts oci://docker.io/user/repo --semver="~1.0"
`,
	RunE: runListArtifactCmd,
}

type listArtifactFlags struct {
	semverExp string
}

var listArtifactArgs listArtifactFlags

func init() {
	listArtifactCmd.Flags().StringVar(&listArtifactArgs.semverExp, "semver", "",
		"Filter the results based on a semantic version constraint e.g. '1.x'.")
	listCmd.AddCommand(listArtifactCmd)
	rootCmd.AddCommand(listCmd)
}

func runListArtifactCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact repository e.g. 'oci://docker.io/user/repo'")
	}

	url, err := registry.ParseRepositoryURL(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	tags, err := registry.List(ctx, url)
	if err != nil {
		return err
	}

	if exp := listArtifactArgs.semverExp; exp != "" {
		if tags, err = registry.FilterSemver(tags, exp); err != nil {
			return err
		}
	}

	var rows [][]string
	for _, tag := range tags {
		// exclude cosign signatures
		if !strings.HasSuffix(tag, ".sig") {
			rows = append(rows, []string{tag, fmt.Sprintf("%s%s:%s", registry.URLPrefix, url, tag)})
		}
	}

	printTable(rootCmd.OutOrStdout(), []string{"version", "url"}, rows)

	return nil
}
