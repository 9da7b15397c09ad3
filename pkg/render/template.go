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

package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"sigs.k8s.io/yaml"
)

var templateFuncMap = sprig.TxtFuncMap()

// Deploy describes the target of a deployment run, it is exposed to
// templates as .deploy.
type Deploy struct {
	Project     string
	Service     string
	Server      string
	APIVersion  string
	Environment string
}

// Values holds the data a deployment template is executed with.
type Values struct {
	// Vars is the content of the environment variables file, exposed as .vars.
	Vars map[string]interface{}
	// Deploy is exposed as .deploy.
	Deploy Deploy
	// Options are the key=value pairs given on the command line, exposed as .options.
	Options map[string]string
}

func (v Values) data() map[string]interface{} {
	vars := v.Vars
	if vars == nil {
		vars = map[string]interface{}{}
	}
	options := map[string]interface{}{}
	for k, val := range v.Options {
		options[k] = val
	}
	return map[string]interface{}{
		"vars": vars,
		"deploy": map[string]interface{}{
			"project":     v.Deploy.Project,
			"service":     v.Deploy.Service,
			"server":      v.Deploy.Server,
			"apiVersion":  v.Deploy.APIVersion,
			"environment": v.Deploy.Environment,
		},
		"options": options,
	}
}

// Template executes the template file with the given values.
// References to missing keys are reported as errors.
func Template(path string, values Values) ([]byte, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return TemplateString(filepath.Base(path), string(text), values)
}

// TemplateString executes the named template text with the given values.
func TemplateString(name, text string, values Values) ([]byte, error) {
	tmpl, err := parse(name, text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values.data()); err != nil {
		return nil, fmt.Errorf("executing template %s failed: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Parse checks the syntax of the template text without executing it.
func Parse(name, text string) error {
	_, err := parse(name, text)
	return err
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncMap).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s failed: %w", name, err)
	}
	return tmpl, nil
}

// ReadVars decodes a YAML or JSON variables file. An empty path returns no variables.
func ReadVars(path string) (map[string]interface{}, error) {
	vars := map[string]interface{}{}
	if path == "" {
		return vars, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("decoding vars file %s failed: %w", path, err)
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	return vars, nil
}

// ParseOptions turns key=value pairs into a map, later keys win.
func ParseOptions(pairs []string) (map[string]string, error) {
	options := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid option %q, must be in the format key=value", pair)
		}
		options[strings.TrimSpace(k)] = v
	}
	return options, nil
}
