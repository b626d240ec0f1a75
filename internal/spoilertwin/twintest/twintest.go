// Package twintest starts a Story Spoiler twin for tests and offers a raw
// HTTP client with assertion helpers for poking at it directly.
package twintest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storyspoiler/spoilercheck/internal/spoilertwin"
)

// Credentials accepted by every twin started with Start.
const (
	Username = "spoiler-tester"
	Password = "hunter2"
)

// Twin is a running twin plus what tests need to reach it.
type Twin struct {
	*spoilertwin.Server
	HTTP *httptest.Server
	// BaseURL includes the /api prefix, the form clients are configured with.
	BaseURL string
	t       *testing.T
}

// Start runs a twin on an httptest server that is closed when t ends.
func Start(t *testing.T) *Twin {
	t.Helper()
	srv := spoilertwin.New(spoilertwin.Options{
		Users: map[string]string{Username: Password},
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &Twin{
		Server:  srv,
		HTTP:    ts,
		BaseURL: ts.URL + spoilertwin.BasePath,
		t:       t,
	}
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	t          *testing.T
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
	return m
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertBodyContains asserts the response body contains the given substring.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// Login authenticates with the built-in credentials and returns the token.
func (tw *Twin) Login() string {
	tw.t.Helper()
	resp := tw.Do(http.MethodPost, "/User/Authentication", map[string]string{
		"username": Username,
		"password": Password,
	}, "")
	resp.AssertStatus(http.StatusOK)
	token, _ := resp.JSONMap()["accessToken"].(string)
	if token == "" {
		tw.t.Fatalf("login returned no accessToken: %s", string(resp.Body))
	}
	return token
}

// Do sends a request to path (relative to BaseURL). body may be a string,
// sent verbatim, or any value, sent as JSON. An empty token sends no
// Authorization header.
func (tw *Twin) Do(method, path string, body any, token string) *Response {
	tw.t.Helper()

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			tw.t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, tw.BaseURL+path, bodyReader)
	if err != nil {
		tw.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tw.HTTP.Client().Do(req)
	if err != nil {
		tw.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		tw.t.Fatalf("failed to read response: %v", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, t: tw.t}
}
