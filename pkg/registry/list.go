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

package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-containerregistry/pkg/crane"
)

// List returns the tags of the repository.
func List(ctx context.Context, repoURL string) ([]string, error) {
	tags, err := crane.ListTags(repoURL, craneOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("listing tags of %s failed: %w", repoURL, err)
	}
	return tags, nil
}

// FilterSemver returns the tags matching the constraint, sorted from the
// highest version to the lowest. Tags that are not semver are skipped.
func FilterSemver(tags []string, constraint string) ([]string, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("semver '%s' parse error: %w", constraint, err)
	}

	var matches []*semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if c.Check(v) {
			matches = append(matches, v)
		}
	}

	sort.Sort(sort.Reverse(semver.Collection(matches)))

	result := make([]string, 0, len(matches))
	for _, v := range matches {
		result = append(result, v.Original())
	}
	return result, nil
}

// ResolveSemver returns the highest tag matching the constraint.
func ResolveSemver(ctx context.Context, repoURL, constraint string) (string, error) {
	tags, err := List(ctx, repoURL)
	if err != nil {
		return "", err
	}
	matches, err := FilterSemver(tags, constraint)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no tag of %s matches '%s'", repoURL, constraint)
	}
	return matches[0], nil
}
