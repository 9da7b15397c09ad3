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
	"os"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/raffs/ocdeploy/pkg/registry"
	"github.com/raffs/ocdeploy/pkg/render"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push uploads deployment templates to a container registry.",
}

var pushArtifactCmd = &cobra.Command{
	Use:   "artifact OCIURL",
	Short: "Push artifact packages a DeploymentConfig template into an OCI artifact and pushes it to a container registry.",
	Long: `The push artifact command checks the template syntax, packages the template into an
OCI artifact and pushes the image to the container registry.
The push command uses the credentials from '~/.docker/config.json'.`,
	Example: `  # Push a template to GitHub Container Registry
  ocdeploy push artifact oci://ghcr.io/org/frontend:1.0.0 -f ./Deployment.yml --service frontend

  # Push an encrypted template
  ocdeploy push artifact oci://ghcr.io/org/frontend:1.0.0 -f ./Deployment.yml --age-recipients ./recipients.txt
`,
	RunE: runPushArtifactCmd,
}

type pushArtifactFlags struct {
	filename      string
	service       string
	ageRecipients string
}

var pushArtifactArgs pushArtifactFlags

func init() {
	pushArtifactCmd.Flags().StringVarP(&pushArtifactArgs.filename, "filename", "f", "",
		"Path to a DeploymentConfig template.")
	pushArtifactCmd.Flags().StringVar(&pushArtifactArgs.service, "service", "",
		"The service name recorded in the artifact annotations.")
	pushArtifactCmd.Flags().StringVar(&pushArtifactArgs.ageRecipients, "age-recipients", "",
		"Path to a file containing one or more age recipients (public keys generated by age-keygen).")

	pushCmd.AddCommand(pushArtifactCmd)
	rootCmd.AddCommand(pushCmd)
}

func runPushArtifactCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact name e.g. 'oci://docker.io/user/repo:tag'")
	}

	if pushArtifactArgs.filename == "" {
		return fmt.Errorf("-f is required")
	}

	url, err := registry.ParseURL(args[0])
	if err != nil {
		return err
	}

	tmpl, err := os.ReadFile(pushArtifactArgs.filename)
	if err != nil {
		return err
	}
	if err := render.Parse(pushArtifactArgs.filename, string(tmpl)); err != nil {
		return err
	}

	var recipients []age.Recipient
	if pushArtifactArgs.ageRecipients != "" {
		if recipients, err = registry.ParseAgeRecipients(pushArtifactArgs.ageRecipients); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	logger.Actionf("pushing image %s", url)
	meta := registry.NewMetadata(VERSION, pushArtifactArgs.service, "")
	digest, err := registry.Push(ctx, url, tmpl, meta, recipients)
	if err != nil {
		return fmt.Errorf("pushing image failed: %w", err)
	}

	logger.Successf("published digest %s", digest)
	return nil
}
