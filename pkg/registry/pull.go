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
	"io"

	"filippo.io/age"
	"github.com/google/go-containerregistry/pkg/crane"
)

// Pull downloads a template artifact, decrypts it when needed and
// verifies its checksum.
func Pull(ctx context.Context, url string, identities []age.Identity) ([]byte, *Metadata, error) {
	ref, err := parseReference(url)
	if err != nil {
		return nil, nil, err
	}

	img, err := crane.Pull(url, craneOptions(ctx)...)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, nil, err
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing digest failed: %w", err)
	}

	meta, err := GetMetadata(manifest.Annotations)
	if err != nil {
		return nil, nil, err
	}
	meta.Digest = ref.Context().Digest(digest.String()).String()

	if meta.Encrypted != "" && len(identities) < 1 {
		return nil, meta, fmt.Errorf("encrypted artifact, you need to supply a private key for decryption")
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, nil, err
	}
	if len(layers) != 1 {
		return nil, nil, fmt.Errorf("expected one layer, found %d", len(layers))
	}

	rc, err := layers[0].Uncompressed()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, err
	}

	if meta.Encrypted == AgeEncryptionVersion {
		data, err = decrypt(data, identities)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrypt template: %w", err)
		}
	}

	if meta.Checksum != checksum(data) {
		return nil, nil, fmt.Errorf("checksum mismatch for %s", meta.Digest)
	}

	return data, meta, nil
}
