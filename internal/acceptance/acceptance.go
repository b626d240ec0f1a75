// Package acceptance holds the Story Spoiler acceptance suite: the ordered
// steps that exercise the story endpoints and the Suite that logs in once
// and runs them.
package acceptance

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/storyspoiler/spoilercheck/internal/client"
)

// Messages the live service returns. Matching is exact for the success
// messages and by substring for the not-found ones.
const (
	MsgCreated       = "Successfully created!"
	MsgEdited        = "Successfully edited"
	MsgDeleted       = "Deleted successfully!"
	MsgEditMissing   = "No spoilers..."
	MsgDeleteMissing = "Unable to delete this story spoiler!"
)

// SentinelID is an id no story is ever assigned.
var SentinelID = uuid.Nil.String()

// ErrNoStoryID is returned by steps that need the id captured at creation
// when the create step did not capture one.
var ErrNoStoryID = errors.New("no story id was captured by the create step")

// Drafts sent by the suite.
var (
	CreateDraft = client.StoryDraft{
		Title:       "My Secret Ending",
		Description: "The hero dies.",
	}
	EditDraft = client.StoryDraft{
		Title:       "Edited Spoiler Title",
		Description: "Now the villain dies!",
	}
	EmptyDraft    = client.StoryDraft{}
	SentinelDraft = client.StoryDraft{
		Title:       "Fake Title",
		Description: "This shouldn't exist.",
	}
)

// State is shared by every step of one run.
type State struct {
	// StoryID is set by the create step and read by the ones after it.
	StoryID string
}

func (s *State) requireStoryID() (string, error) {
	if s.StoryID == "" {
		return "", ErrNoStoryID
	}
	return s.StoryID, nil
}

// Expectations are the response messages the steps look for.
type Expectations struct {
	Created       string `mapstructure:"created" yaml:"created"`
	Edited        string `mapstructure:"edited" yaml:"edited"`
	Deleted       string `mapstructure:"deleted" yaml:"deleted"`
	EditMissing   string `mapstructure:"edit_missing" yaml:"edit_missing"`
	DeleteMissing string `mapstructure:"delete_missing" yaml:"delete_missing"`
}

// DefaultExpectations returns the messages the live service sends today.
func DefaultExpectations() Expectations {
	return Expectations{
		Created:       MsgCreated,
		Edited:        MsgEdited,
		Deleted:       MsgDeleted,
		EditMissing:   MsgEditMissing,
		DeleteMissing: MsgDeleteMissing,
	}
}

// withDefaults fills every empty field from DefaultExpectations.
func (e Expectations) withDefaults() Expectations {
	d := DefaultExpectations()
	if e.Created == "" {
		e.Created = d.Created
	}
	if e.Edited == "" {
		e.Edited = d.Edited
	}
	if e.Deleted == "" {
		e.Deleted = d.Deleted
	}
	if e.EditMissing == "" {
		e.EditMissing = d.EditMissing
	}
	if e.DeleteMissing == "" {
		e.DeleteMissing = d.DeleteMissing
	}
	return e
}

// StoryAPI is the part of client.StoryClient the steps drive.
type StoryAPI interface {
	Create(ctx context.Context, draft client.StoryDraft) (*client.Response, error)
	Edit(ctx context.Context, id string, draft client.StoryDraft) (*client.Response, error)
	List(ctx context.Context) (*client.Response, error)
	Delete(ctx context.Context, id string) (*client.Response, error)
}
