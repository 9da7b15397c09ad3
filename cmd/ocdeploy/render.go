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
	"strings"

	"filippo.io/age"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/objectutil"
	"github.com/raffs/ocdeploy/pkg/registry"
	"github.com/raffs/ocdeploy/pkg/render"
	"github.com/raffs/ocdeploy/pkg/source"
)

var renderCmd = &cobra.Command{
	Use:   "render SERVICE",
	Short: "Render prints the DeploymentConfig of a service as YAML.",
	Long: `The render command executes the deployment template with the environment variables
and the command line options, then prints the resulting DeploymentConfig.
The template is read from a file, a Kustomize overlay, a git repository or an OCI artifact.`,
	Example: `  # Render a template with the variables of the production environment
  ocdeploy render frontend -n shop -f ./Deployment.yml --vars ./vars/production.yml

  # Render a template stored in a git repository laid out as <project>/<service>/Deployment.yml
  ocdeploy render frontend -n shop --git-repository https://git.example.com/ops/deploy.git -e production

  # Render the latest 1.x template published to a container registry
  ocdeploy render frontend -n shop --artifact oci://ghcr.io/org/frontend --artifact-semver 1.x
`,
	RunE: runRenderCmd,
}

type renderFlags struct {
	filename       string
	kustomize      string
	vars           string
	set            []string
	environment    string
	gitRepository  string
	gitBranch      string
	gitUsername    string
	gitPassword    string
	artifact       string
	artifactSemver string
	ageIdentities  string
}

var renderArgs renderFlags

func init() {
	addRenderFlags(renderCmd, &renderArgs)
	rootCmd.AddCommand(renderCmd)
}

func addRenderFlags(cmd *cobra.Command, f *renderFlags) {
	cmd.Flags().StringVarP(&f.filename, "filename", "f", "",
		"Path to a DeploymentConfig template.")
	cmd.Flags().StringVarP(&f.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	cmd.Flags().StringVar(&f.vars, "vars", "",
		"Path to a YAML file with the template variables, exposed as .vars.")
	cmd.Flags().StringArrayVar(&f.set, "set", nil,
		"Template option in the format key=value, exposed as .options.")
	cmd.Flags().StringVarP(&f.environment, "environment", "e", "",
		"The environment name, selects the variables file of a git repository.")
	cmd.Flags().StringVar(&f.gitRepository, "git-repository", "",
		"URL of a git repository that holds the templates.")
	cmd.Flags().StringVar(&f.gitBranch, "git-branch", "",
		"The git branch to check out.")
	cmd.Flags().StringVar(&f.gitUsername, "git-username", "",
		"The username for git HTTP basic auth.")
	cmd.Flags().StringVar(&f.gitPassword, "git-password", "",
		"The password for git HTTP basic auth.")
	cmd.Flags().StringVar(&f.artifact, "artifact", "",
		"OCI artifact that holds the template in the format 'oci://<image-url>:<tag>'.")
	cmd.Flags().StringVar(&f.artifactSemver, "artifact-semver", "",
		"Pull the highest artifact version matching the semver constraint, e.g. '1.x'.")
	cmd.Flags().StringVar(&f.ageIdentities, "age-identities", "",
		"Path to a file containing one or more age identities (private keys generated by age-keygen).")
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
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

	obj, err := renderDeploymentConfig(ctx, project, service, renderArgs)
	if err != nil {
		return err
	}

	yml, err := objectutil.ObjectToYAML(obj)
	if err != nil {
		return err
	}
	rootCmd.Print(yml)
	return nil
}

// renderDeploymentConfig builds the DeploymentConfig from the source selected by the flags.
// The git repository of the config file is used when no source is given.
func renderDeploymentConfig(ctx context.Context, project, service string, f renderFlags) (*unstructured.Unstructured, error) {
	var sources []string
	for flag, value := range map[string]string{
		"-f":               f.filename,
		"-k":               f.kustomize,
		"--git-repository": f.gitRepository,
		"--artifact":       f.artifact,
	} {
		if value != "" {
			sources = append(sources, flag)
		}
	}

	switch {
	case len(sources) > 1:
		return nil, fmt.Errorf("only one of -f, -k, --git-repository or --artifact can be specified")
	case len(sources) == 0 && cfg.Source.Repository != "":
		f.gitRepository = cfg.Source.Repository
		if f.gitBranch == "" {
			f.gitBranch = cfg.Source.Branch
		}
	case len(sources) == 0:
		return nil, fmt.Errorf("-f, -k, --git-repository or --artifact is required")
	}

	var data []byte
	var err error
	switch {
	case f.kustomize != "":
		logger.Actionf("building %s", f.kustomize)
		data, err = render.Kustomize(f.kustomize)
	case f.filename != "":
		data, err = renderTemplateFile(project, service, f, f.filename, f.vars)
	case f.gitRepository != "":
		data, err = renderFromGit(ctx, project, service, f)
	case f.artifact != "":
		data, err = renderFromArtifact(ctx, project, service, f)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering failed: %w", err)
	}

	return render.DeploymentConfig(data)
}

func renderFromGit(ctx context.Context, project, service string, f renderFlags) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", PROJECT)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	logger.Actionf("cloning %s", f.gitRepository)
	commit, err := source.Clone(ctx, source.GitOptions{
		URL:      f.gitRepository,
		Branch:   f.gitBranch,
		Username: f.gitUsername,
		Password: f.gitPassword,
	}, tmpDir)
	if err != nil {
		return nil, err
	}
	logger.Successf("checked out revision %s", commit)

	layout := source.Layout{
		Project:     project,
		Service:     service,
		DeployFile:  cfg.Source.DeployFile,
		VarsDir:     cfg.Source.VarsDir,
		Environment: f.environment,
	}

	file, err := layout.DeploymentFile(tmpDir)
	if err != nil {
		return nil, err
	}

	varsFile := f.vars
	if varsFile == "" {
		if varsFile, err = layout.VarsFile(tmpDir); err != nil {
			return nil, err
		}
	}

	return renderTemplateFile(project, service, f, file, varsFile)
}

func renderFromArtifact(ctx context.Context, project, service string, f renderFlags) ([]byte, error) {
	var url string
	if f.artifactSemver != "" {
		repo, err := registry.ParseRepositoryURL(f.artifact)
		if err != nil {
			return nil, err
		}
		tag, err := registry.ResolveSemver(ctx, repo, f.artifactSemver)
		if err != nil {
			return nil, err
		}
		url = fmt.Sprintf("%s:%s", repo, tag)
	} else {
		var err error
		if url, err = registry.ParseURL(f.artifact); err != nil {
			return nil, err
		}
	}

	var identities []age.Identity
	if f.ageIdentities != "" {
		var err error
		if identities, err = registry.ParseAgeIdentities(f.ageIdentities); err != nil {
			return nil, err
		}
	}

	logger.Actionf("pulling %s", url)
	tmpl, meta, err := registry.Pull(ctx, url, identities)
	if err != nil {
		return nil, fmt.Errorf("pulling %s failed: %w", url, err)
	}
	logger.Successf("pulled %s", meta.Digest)

	values, err := templateValues(project, service, f, f.vars)
	if err != nil {
		return nil, err
	}
	return render.TemplateString(url, string(tmpl), values)
}

func renderTemplateFile(project, service string, f renderFlags, file, varsFile string) ([]byte, error) {
	values, err := templateValues(project, service, f, varsFile)
	if err != nil {
		return nil, err
	}
	return render.Template(file, values)
}

func templateValues(project, service string, f renderFlags, varsFile string) (render.Values, error) {
	vars, err := render.ReadVars(varsFile)
	if err != nil {
		return render.Values{}, err
	}

	options, err := render.ParseOptions(f.set)
	if err != nil {
		return render.Values{}, err
	}

	server := cfg.Server.URL
	if restConfig, err := newRESTConfig(); err == nil {
		server = strings.TrimSuffix(restConfig.Host, "/")
	}

	return render.Values{
		Vars: vars,
		Deploy: render.Deploy{
			Project:     project,
			Service:     service,
			Server:      server,
			APIVersion:  cfg.Server.APIVersion,
			Environment: f.environment,
		},
		Options: options,
	}, nil
}
