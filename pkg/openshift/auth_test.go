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

package openshift

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/gomega"

	"github.com/raffs/ocdeploy/pkg/openshift/fakeapi"
)

func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		token string
		found bool
	}{
		{
			name:  "location fragment",
			text:  "https://h:8443/oauth/token/implicit#access_token=sha256~abc&expires_in=86400&token_type=Bearer\n",
			token: "sha256~abc",
			found: true,
		},
		{
			name:  "body",
			text:  "\n<a href=\"/oauth/token/implicit#access_token=xyz&amp;expires_in=86400\">Found</a>",
			token: "xyz",
			found: true,
		},
		{
			name:  "first match",
			text:  "access_token=one&access_token=two&",
			token: "one",
			found: true,
		},
		{
			name:  "no terminator",
			text:  "https://h:8443/oauth/token/implicit#access_token=abc",
			found: false,
		},
		{
			name:  "login page",
			text:  "\n<html>Log in to your account</html>",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			token, found := ExtractAccessToken(tt.text)
			g.Expect(found).To(Equal(tt.found))
			g.Expect(token).To(Equal(tt.token))
		})
	}
}

func TestAuthorizationHeader_Token(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	cfg := ClientConfig{ServerURL: srv.URL, Credential: TokenCredential("abc")}

	header, err := NewAuthenticator(srv.Client(), logr.Discard()).AuthorizationHeader(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(header).To(Equal("Bearer abc"))
	g.Expect(srv.Requests()).To(BeEmpty())
}

func TestAuthorizationHeader_Password(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	client, err := newHTTPClient(DefaultTimeout, TLSConfig{}, false)
	g.Expect(err).NotTo(HaveOccurred())

	cfg := ClientConfig{ServerURL: srv.URL, Credential: BasicCredential(fakeapi.Username, fakeapi.Password)}

	header, err := NewAuthenticator(client, logr.Discard()).AuthorizationHeader(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(header).To(Equal("Bearer " + fakeapi.Token))

	// the redirect must not be followed
	g.Expect(srv.Requests()).To(Equal([]string{
		http.MethodGet + " /oauth/authorize?client_id=openshift-challenging-client&response_type=token",
	}))
}

func TestAuthorizationHeader_Errors(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	client, err := newHTTPClient(DefaultTimeout, TLSConfig{}, false)
	g.Expect(err).NotTo(HaveOccurred())
	auth := NewAuthenticator(client, logr.Discard())

	_, err = auth.AuthorizationHeader(context.Background(), ClientConfig{
		ServerURL:  srv.URL,
		Credential: BasicCredential(fakeapi.Username, "wrong"),
	})
	g.Expect(errors.Is(err, ErrAuth)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("status 401"))

	_, err = auth.AuthorizationHeader(context.Background(), ClientConfig{
		ServerURL:  srv.URL,
		Credential: Credential{Username: "u", Password: "p", Token: "t"},
	})
	g.Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())

	_, err = auth.AuthorizationHeader(context.Background(), ClientConfig{
		ServerURL:  srv.URL,
		Credential: Credential{Username: "u"},
	})
	g.Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())

	url := srv.URL
	srv.Close()
	_, err = auth.AuthorizationHeader(context.Background(), ClientConfig{
		ServerURL:  url,
		Credential: BasicCredential(fakeapi.Username, fakeapi.Password),
	})
	g.Expect(errors.Is(err, ErrTransport)).To(BeTrue())
}
