package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// StoryDraft is the payload for create and edit. No field is validated
// client-side; validation is the server's job and is what the suite checks.
type StoryDraft struct {
	Title       string `json:"Title"`
	Description string `json:"Description"`
	URL         string `json:"Url"`
}

// StoryClient issues authenticated requests against the /Story endpoints.
type StoryClient struct {
	base
}

// NewStoryClient creates a StoryClient that attaches the session token to
// every request.
func NewStoryClient(baseURL string, session *Session, opts ...Option) *StoryClient {
	wrap := func(next http.RoundTripper) http.RoundTripper {
		return &bearerTransport{token: session.Token, next: next}
	}
	return &StoryClient{base: newBase(baseURL, buildOptions(opts), wrap)}
}

// Create sends POST /Story/Create.
func (c *StoryClient) Create(ctx context.Context, draft StoryDraft) (*Response, error) {
	resp, err := c.do(ctx, "create", http.MethodPost, "/Story/Create", draft)
	if err != nil {
		return nil, err
	}
	decodeMessage(resp)
	return resp, nil
}

// Edit sends PUT /Story/Edit/{id}.
func (c *StoryClient) Edit(ctx context.Context, id string, draft StoryDraft) (*Response, error) {
	resp, err := c.do(ctx, "edit", http.MethodPut, "/Story/Edit/"+url.PathEscape(id), draft)
	if err != nil {
		return nil, err
	}
	decodeMessage(resp)
	return resp, nil
}

// List sends GET /Story/All. When the body is a JSON array its elements are
// kept, unparsed, in Response.Stories.
func (c *StoryClient) List(ctx context.Context) (*Response, error) {
	resp, err := c.do(ctx, "list", http.MethodGet, "/Story/All", nil)
	if err != nil {
		return nil, err
	}
	var stories []json.RawMessage
	if err := json.Unmarshal(resp.Body, &stories); err == nil {
		resp.Stories = stories
	} else {
		decodeMessage(resp)
	}
	return resp, nil
}

// Delete sends DELETE /Story/Delete/{id}.
func (c *StoryClient) Delete(ctx context.Context, id string) (*Response, error) {
	resp, err := c.do(ctx, "delete", http.MethodDelete, "/Story/Delete/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	decodeMessage(resp)
	return resp, nil
}

// Close releases the client's idle connections. Call it once the run is over.
func (c *StoryClient) Close() {
	c.close()
}

// bearerTransport sets the Authorization header on every outgoing request.
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}
