package acceptance

import (
	"fmt"
	"strings"

	"github.com/storyspoiler/spoilercheck/internal/client"
)

// bodyPreviewLimit caps how much of a response body goes into an error.
const bodyPreviewLimit = 500

// expect describes what a response must look like. Zero-valued fields are
// not checked. Checks run in field order and the first mismatch is returned.
type expect struct {
	Status int
	// Msg is compared exactly against the decoded "msg" field.
	Msg        string
	HasStoryID bool
	// BodyContains is matched against the raw body, so plain-text error
	// bodies are covered too.
	BodyContains string
	// MinStories requires a JSON array of at least this many stories.
	MinStories int
}

func (e expect) verify(resp *client.Response) error {
	if e.Status != 0 && resp.StatusCode != e.Status {
		if preview := bodyPreview(resp.Body); preview != "" {
			return fmt.Errorf("expected status %d, got %d; body: %s", e.Status, resp.StatusCode, preview)
		}
		return fmt.Errorf("expected status %d, got %d", e.Status, resp.StatusCode)
	}

	if e.Msg != "" && resp.Msg != e.Msg {
		return fmt.Errorf("expected msg %q, got %q; body: %s", e.Msg, resp.Msg, bodyPreview(resp.Body))
	}

	if e.HasStoryID && resp.StoryID == "" {
		return fmt.Errorf("response has no storyId; body: %s", bodyPreview(resp.Body))
	}

	if e.BodyContains != "" && !resp.BodyContains(e.BodyContains) {
		return fmt.Errorf("body does not contain %q; body: %s", e.BodyContains, bodyPreview(resp.Body))
	}

	if e.MinStories > 0 {
		if resp.Stories == nil {
			return fmt.Errorf("expected a JSON array of stories; body: %s", bodyPreview(resp.Body))
		}
		if len(resp.Stories) < e.MinStories {
			return fmt.Errorf("expected at least %d stories, got %d", e.MinStories, len(resp.Stories))
		}
	}
	return nil
}

// bodyPreview returns the body as a string, truncated for error messages.
func bodyPreview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyPreviewLimit {
		return s[:bodyPreviewLimit] + "..."
	}
	return s
}
