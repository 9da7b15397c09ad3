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
	"context"
	"fmt"
	"io"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	plumbingHTTP "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitOptions holds the settings of a repository checkout.
type GitOptions struct {
	URL             string
	Branch          string
	Username        string
	Password        string
	InsecureSkipTLS bool
	CABundle        []byte
	// Progress receives the clone output when set.
	Progress io.Writer
}

// Clone checks out the last commit of the branch into dir and returns its hash.
func Clone(ctx context.Context, opts GitOptions, dir string) (string, error) {
	if opts.URL == "" {
		return "", fmt.Errorf("git repository URL is required")
	}

	cloneOpts := &gogit.CloneOptions{
		URL:             opts.URL,
		Depth:           1,
		SingleBranch:    true,
		Tags:            gogit.NoTags,
		InsecureSkipTLS: opts.InsecureSkipTLS,
		CABundle:        opts.CABundle,
		Progress:        opts.Progress,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
	}
	if opts.Username != "" || opts.Password != "" {
		cloneOpts.Auth = &plumbingHTTP.BasicAuth{
			Username: opts.Username,
			Password: opts.Password,
		}
	}

	if err := cloneOpts.Validate(); err != nil {
		return "", fmt.Errorf("clone options validation failure: %w", err)
	}

	repo, err := gogit.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		return "", fmt.Errorf("cloning %s failed: %w", opts.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD of %s failed: %w", opts.URL, err)
	}

	return head.Hash().String(), nil
}
