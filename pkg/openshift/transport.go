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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	utiljson "k8s.io/apimachinery/pkg/util/json"
	"k8s.io/client-go/rest"
)

// Response holds the status code and the decoded JSON body of an API call.
// Body is never nil, an empty response body decodes to an empty map.
type Response struct {
	StatusCode int
	Body       map[string]interface{}
}

// Transport executes JSON requests against a base URL.
type Transport struct {
	baseURL       string
	authorization string
	client        *http.Client
}

// NewTransport returns a Transport for the given base URL.
// The authorization value is sent as is, an empty value omits the header.
func NewTransport(baseURL, authorization string, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		baseURL:       baseURL,
		authorization: authorization,
		client:        client,
	}
}

// JoinURL concatenates the trimmed base URL and path. Slashes are not
// normalized, the caller must supply exactly one separator.
func JoinURL(base, path string) string {
	return strings.TrimSpace(base) + strings.TrimSpace(path)
}

// Do sends the request and decodes the response body. Any HTTP status is
// returned as a Response, a failed round trip is returned as a TransportError.
func (t *Transport) Do(ctx context.Context, method, path string, body map[string]interface{}) (*Response, error) {
	if strings.TrimSpace(t.baseURL) == "" {
		return nil, configError("base URL is not set")
	}

	var reader io.Reader
	switch method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		if body == nil {
			return nil, configError("%s %s requires a request body", method, path)
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body failed: %w", err)
		}
		reader = bytes.NewReader(data)
	default:
		return nil, configError("unsupported method %q, must be one of GET, POST or PUT", method)
	}

	url := JoinURL(t.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, configError("invalid request %s %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.authorization != "" {
		req.Header.Set("Authorization", t.authorization)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	obj, err := decodeBody(data)
	if err != nil {
		// error pages served by the router are not JSON, the status code still applies
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Response{StatusCode: resp.StatusCode, Body: map[string]interface{}{}}, nil
		}
		return nil, &TransportError{
			Method: method,
			URL:    url,
			Err:    fmt.Errorf("malformed response body: %w", err),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Body: obj}, nil
}

func decodeBody(data []byte) (map[string]interface{}, error) {
	obj := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return obj, nil
	}
	if err := utiljson.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]interface{}{}
	}
	return obj, nil
}

// newHTTPClient returns a client that applies the timeout to the dial,
// TLS handshake, response headers and the whole exchange.
func newHTTPClient(timeout time.Duration, tlsConfig TLSConfig, followRedirects bool) (*http.Client, error) {
	tc, err := rest.TLSConfigFor(&rest.Config{
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: tlsConfig.Insecure,
			CAFile:   tlsConfig.CAFile,
			CAData:   tlsConfig.CAData,
		},
	})
	if err != nil {
		return nil, configError("TLS config: %v", err)
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSClientConfig:       tc,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}

	if !followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}
