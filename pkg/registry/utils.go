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
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
)

const URLPrefix = "oci://"

// ParseURL strips the oci:// prefix of an artifact URL with a tag or digest.
func ParseURL(ociURL string) (string, error) {
	url, err := trimPrefix(ociURL, "'oci://<domain>/<org>/<repo>:<tag>'")
	if err != nil {
		return "", err
	}
	if _, err := name.ParseReference(url, name.StrictValidation); err != nil {
		return "", fmt.Errorf("'%s' invalid: %w", ociURL, err)
	}
	return url, nil
}

// ParseRepositoryURL strips the oci:// prefix of a repository URL.
func ParseRepositoryURL(ociURL string) (string, error) {
	url, err := trimPrefix(ociURL, "'oci://<domain>/<org>/<repo>'")
	if err != nil {
		return "", err
	}
	if _, err := name.NewRepository(url); err != nil {
		return "", fmt.Errorf("'%s' invalid: %w", ociURL, err)
	}
	return url, nil
}

func trimPrefix(ociURL, format string) (string, error) {
	if !strings.HasPrefix(ociURL, URLPrefix) {
		return "", fmt.Errorf("URL must be in format %s", format)
	}
	return strings.TrimPrefix(ociURL, URLPrefix), nil
}

func parseReference(url string) (name.Reference, error) {
	ref, err := name.ParseReference(url)
	if err != nil {
		return nil, fmt.Errorf("parsing reference failed: %w", err)
	}
	return ref, nil
}

func craneOptions(ctx context.Context) []crane.Option {
	return []crane.Option{
		crane.WithContext(ctx),
		crane.WithUserAgent("ocdeploy/v1"),
		crane.WithPlatform(&gcrv1.Platform{
			Architecture: "none",
			OS:           "none",
		}),
	}
}
