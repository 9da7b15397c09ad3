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
	"net/http"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check SERVICE",
	Short: "Check verifies that a service can be deployed.",
	Long: `The check command verifies that the API server is available and that the project exists.
It also reports whether the DeploymentConfig of the service exists, in which case the next
deploy updates it, otherwise the next deploy creates it.`,
	Example: `  ocdeploy check frontend -n shop --server https://api.example.com:8443 --token $TOKEN`,
	RunE:    runCheckCmd,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify a service name")
	}
	service := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	client, err := newOpenShiftClient(ctx, service)
	if err != nil {
		return err
	}
	project := client.Config().Project
	server := client.Config().ServerURL

	code, err := client.ServerStatus(ctx)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("API server %s is not available, received status %d", server, code)
	}
	logger.Successf("API server %s is available", server)

	exists, err := client.CheckProject(ctx, project)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("project %s not found", project)
	}
	logger.Successf("project %s found", project)

	exists, err = client.CheckService(ctx, service)
	if err != nil {
		return err
	}
	if exists {
		logger.Successf("service %s found, deploy will update it", service)
	} else {
		logger.Actionf("service %s not found, deploy will create it", service)
	}

	return nil
}
