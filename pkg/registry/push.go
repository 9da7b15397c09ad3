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
	"crypto/sha256"
	"fmt"

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// Push publishes the template as a single layer artifact and returns the
// digest URL. The template is encrypted when recipients are given.
func Push(ctx context.Context, url string, template []byte, meta *Metadata, recipients []age.Recipient) (string, error) {
	ref, err := parseReference(url)
	if err != nil {
		return "", err
	}

	meta.Checksum = checksum(template)

	data := template
	mediaType := types.MediaType(TemplateMediaType)
	if len(recipients) > 0 {
		data, err = encrypt(template, recipients)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt template with age: %w", err)
		}
		meta.Encrypted = AgeEncryptionVersion
		mediaType = EncryptedTemplateMediaType
	}

	img, err := mutate.AppendLayers(empty.Image, static.NewLayer(data, mediaType))
	if err != nil {
		return "", fmt.Errorf("appending template layer failed: %w", err)
	}
	img = mutate.Annotations(img, meta.ToAnnotations()).(gcrv1.Image)

	if err := crane.Push(img, url, craneOptions(ctx)...); err != nil {
		return "", fmt.Errorf("pushing artifact failed: %w", err)
	}

	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("parsing digest failed: %w", err)
	}

	meta.Digest = ref.Context().Digest(digest.String()).String()
	return meta.Digest, nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
