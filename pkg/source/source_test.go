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
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	. "github.com/onsi/gomega"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLookup(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "Deployment.yml"), "kind: DeploymentConfig\n")
	p, err := Lookup(dir, "Deployment")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(filepath.Join(dir, "Deployment.yml")))

	writeFile(t, filepath.Join(dir, "Deployment.yaml"), "kind: DeploymentConfig\n")
	p, err = Lookup(dir, "Deployment")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(filepath.Join(dir, "Deployment.yaml")))

	_, err = Lookup(dir, "Service")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("Service.yml"))
}

func TestLayout(t *testing.T) {
	g := NewWithT(t)
	root := t.TempDir()

	layout := Layout{
		Project:     "dev",
		Service:     "frontend",
		DeployFile:  "Deployment",
		VarsDir:     "vars",
		Environment: "qa",
	}

	_, err := layout.DeploymentFile(root)
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

	writeFile(t, filepath.Join(root, "dev", "frontend", "Deployment.yml"), "kind: DeploymentConfig\n")
	p, err := layout.DeploymentFile(root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(filepath.Join(root, "dev", "frontend", "Deployment.yml")))

	// the variables file is optional
	p, err = layout.VarsFile(root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(BeEmpty())

	writeFile(t, filepath.Join(root, "dev", "frontend", "vars", "qa.yaml"), "image: nginx\n")
	p, err = layout.VarsFile(root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(filepath.Join(root, "dev", "frontend", "vars", "qa.yaml")))
}

func initRepository(t *testing.T, branch string, files map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}

	hash, err := wt.Commit("add deployment", &gogit.CommitOptions{
		Author: &object.Signature{Name: "ocdeploy", Email: "ocdeploy@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatal(err)
	}

	return dir, hash.String()
}

func TestClone(t *testing.T) {
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		t.Skip("git-upload-pack not found in PATH")
	}
	g := NewWithT(t)

	repoDir, commit := initRepository(t, "release", map[string]string{
		"dev/frontend/Deployment.yml": "kind: DeploymentConfig\n",
		"dev/frontend/vars/qa.yml":    "image: nginx\n",
	})

	dir := filepath.Join(t.TempDir(), "checkout")
	hash, err := Clone(context.Background(), GitOptions{URL: "file://" + repoDir, Branch: "release"}, dir)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(hash).To(Equal(commit))

	layout := Layout{Project: "dev", Service: "frontend", DeployFile: "Deployment", VarsDir: "vars", Environment: "qa"}
	_, err = layout.DeploymentFile(dir)
	g.Expect(err).NotTo(HaveOccurred())
	p, err := layout.VarsFile(dir)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).NotTo(BeEmpty())

	_, err = Clone(context.Background(), GitOptions{URL: "file://" + repoDir, Branch: "missing"}, t.TempDir())
	g.Expect(err).To(HaveOccurred())
}

func TestClone_Validation(t *testing.T) {
	g := NewWithT(t)

	_, err := Clone(context.Background(), GitOptions{}, t.TempDir())
	g.Expect(err).To(MatchError(ContainSubstring("URL is required")))
}
