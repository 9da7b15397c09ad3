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
	"fmt"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// TemplateMediaType is the media type of the layer holding a deployment template.
	TemplateMediaType = "application/vnd.ocdeploy.template.v1+yaml"
	// EncryptedTemplateMediaType is the media type of an age encrypted template layer.
	EncryptedTemplateMediaType = "application/vnd.ocdeploy.template.v1+yaml+age"

	ServiceAnnotation    = "ocdeploy.raffs.dev/service"
	ChecksumAnnotation   = "ocdeploy.raffs.dev/checksum"
	EncryptedAnnotation  = "ocdeploy.raffs.dev/encrypted"
	AgeEncryptionVersion = "age-encryption.org/v1"
)

// Metadata is stored as manifest annotations next to the template.
type Metadata struct {
	Version   string `json:"version"`
	Service   string `json:"service,omitempty"`
	Checksum  string `json:"checksum"`
	Created   string `json:"created"`
	Encrypted string `json:"encrypted,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// NewMetadata returns the metadata of a template published now.
func NewMetadata(version, service, checksum string) *Metadata {
	return &Metadata{
		Version:  version,
		Service:  service,
		Checksum: checksum,
		Created:  time.Now().UTC().Format(time.RFC3339),
	}
}

// ToAnnotations maps the metadata to the OCI version and created annotations
// and the ocdeploy specific ones.
func (m *Metadata) ToAnnotations() map[string]string {
	annotations := map[string]string{
		ocispec.AnnotationVersion: m.Version,
		ocispec.AnnotationCreated: m.Created,
		ChecksumAnnotation:        m.Checksum,
	}
	if m.Service != "" {
		annotations[ServiceAnnotation] = m.Service
	}
	if m.Encrypted != "" {
		annotations[EncryptedAnnotation] = m.Encrypted
	}
	return annotations
}

// GetMetadata reads the metadata from the manifest annotations.
func GetMetadata(annotations map[string]string) (*Metadata, error) {
	m := &Metadata{
		Service:   annotations[ServiceAnnotation],
		Encrypted: annotations[EncryptedAnnotation],
	}

	for key, field := range map[string]*string{
		ocispec.AnnotationVersion: &m.Version,
		ocispec.AnnotationCreated: &m.Created,
		ChecksumAnnotation:        &m.Checksum,
	} {
		v, ok := annotations[key]
		if !ok {
			return nil, fmt.Errorf("'%s' annotation not found", key)
		}
		*field = v
	}

	return m, nil
}
