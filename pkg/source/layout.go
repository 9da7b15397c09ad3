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

package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions tried, in order, when looking up a file.
var Extensions = []string{"yaml", "yml"}

// ErrNotFound is returned when no file matches any of the extensions.
var ErrNotFound = errors.New("file not found")

// Lookup returns the path of base.yaml or base.yml in dir.
func Lookup(dir, base string) (string, error) {
	var tried []string
	for _, ext := range Extensions {
		p := filepath.Join(dir, fmt.Sprintf("%s.%s", base, ext))
		fi, err := os.Stat(p)
		if err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		tried = append(tried, p)
	}
	return "", fmt.Errorf("%w: none of [%s]", ErrNotFound, strings.Join(tried, ", "))
}

// Layout locates the deployment template and the environment variables of a
// service in a repository organized as <project>/<service>/<DeployFile> and
// <project>/<service>/<VarsDir>/<Environment>.
type Layout struct {
	Project     string
	Service     string
	DeployFile  string
	VarsDir     string
	Environment string
}

// ServiceDir returns the directory of the service in the repository.
func (l Layout) ServiceDir(root string) string {
	return filepath.Join(root, l.Project, l.Service)
}

// DeploymentFile returns the path of the deployment template.
func (l Layout) DeploymentFile(root string) (string, error) {
	return Lookup(l.ServiceDir(root), l.DeployFile)
}

// VarsFile returns the path of the environment variables file, or an empty
// string when the environment has no variables file.
func (l Layout) VarsFile(root string) (string, error) {
	if l.Environment == "" {
		return "", nil
	}
	p, err := Lookup(filepath.Join(l.ServiceDir(root), l.VarsDir), l.Environment)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return p, err
}
