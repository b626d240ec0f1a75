package acceptance

import (
	"context"
	"net/http"

	"github.com/storyspoiler/spoilercheck/internal/scenario"
)

// Step names, in run order.
const (
	StepCreate            = "create story"
	StepEdit              = "edit created story"
	StepList              = "list stories"
	StepDelete            = "delete created story"
	StepCreateEmpty       = "create with empty fields"
	StepEditNonexistent   = "edit nonexistent story"
	StepDeleteNonexistent = "delete nonexistent story"
	StepEditRemoved       = "edit removed story"
	StepDeleteRemoved     = "delete removed story"
)

// StepOptions selects and tunes the steps built by Steps.
type StepOptions struct {
	Expect Expectations
	// RemovalChecks appends the steps that edit and delete the story removed
	// by the delete step.
	RemovalChecks bool
}

// Steps returns the ordered acceptance steps against api.
func Steps(api StoryAPI, opts StepOptions) []scenario.Step[State] {
	exp := opts.Expect.withDefaults()

	steps := []scenario.Step[State]{
		{
			Name: StepCreate,
			Run: func(ctx context.Context, st *State) error {
				resp, err := api.Create(ctx, CreateDraft)
				if err != nil {
					return err
				}
				if resp.StoryID != "" {
					st.StoryID = resp.StoryID
				}
				return expect{
					Status:     http.StatusCreated,
					Msg:        exp.Created,
					HasStoryID: true,
				}.verify(resp)
			},
		},
		{
			Name: StepEdit,
			Run: func(ctx context.Context, st *State) error {
				id, err := st.requireStoryID()
				if err != nil {
					return err
				}
				resp, err := api.Edit(ctx, id, EditDraft)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusOK, Msg: exp.Edited}.verify(resp)
			},
		},
		{
			Name: StepList,
			Run: func(ctx context.Context, _ *State) error {
				resp, err := api.List(ctx)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusOK, MinStories: 1}.verify(resp)
			},
		},
		{
			Name: StepDelete,
			Run: func(ctx context.Context, st *State) error {
				id, err := st.requireStoryID()
				if err != nil {
					return err
				}
				resp, err := api.Delete(ctx, id)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusOK, Msg: exp.Deleted}.verify(resp)
			},
		},
		{
			Name: StepCreateEmpty,
			Run: func(ctx context.Context, _ *State) error {
				resp, err := api.Create(ctx, EmptyDraft)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusBadRequest}.verify(resp)
			},
		},
		{
			Name: StepEditNonexistent,
			Run: func(ctx context.Context, _ *State) error {
				resp, err := api.Edit(ctx, SentinelID, SentinelDraft)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusNotFound, BodyContains: exp.EditMissing}.verify(resp)
			},
		},
		{
			Name: StepDeleteNonexistent,
			Run: func(ctx context.Context, _ *State) error {
				resp, err := api.Delete(ctx, SentinelID)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusBadRequest, BodyContains: exp.DeleteMissing}.verify(resp)
			},
		},
	}

	if !opts.RemovalChecks {
		return steps
	}

	return append(steps,
		scenario.Step[State]{
			Name: StepEditRemoved,
			Run: func(ctx context.Context, st *State) error {
				id, err := st.requireStoryID()
				if err != nil {
					return err
				}
				resp, err := api.Edit(ctx, id, EditDraft)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusNotFound, BodyContains: exp.EditMissing}.verify(resp)
			},
		},
		scenario.Step[State]{
			Name: StepDeleteRemoved,
			Run: func(ctx context.Context, st *State) error {
				id, err := st.requireStoryID()
				if err != nil {
					return err
				}
				resp, err := api.Delete(ctx, id)
				if err != nil {
					return err
				}
				return expect{Status: http.StatusBadRequest, BodyContains: exp.DeleteMissing}.verify(resp)
			},
		},
	)
}

// StepInfo describes a step for listings.
type StepInfo struct {
	Order  int
	Name   string
	Method string
	Path   string
	Status int
}

var stepRoutes = map[string]StepInfo{
	StepCreate:            {Method: http.MethodPost, Path: "/Story/Create", Status: http.StatusCreated},
	StepEdit:              {Method: http.MethodPut, Path: "/Story/Edit/{storyId}", Status: http.StatusOK},
	StepList:              {Method: http.MethodGet, Path: "/Story/All", Status: http.StatusOK},
	StepDelete:            {Method: http.MethodDelete, Path: "/Story/Delete/{storyId}", Status: http.StatusOK},
	StepCreateEmpty:       {Method: http.MethodPost, Path: "/Story/Create", Status: http.StatusBadRequest},
	StepEditNonexistent:   {Method: http.MethodPut, Path: "/Story/Edit/" + SentinelID, Status: http.StatusNotFound},
	StepDeleteNonexistent: {Method: http.MethodDelete, Path: "/Story/Delete/" + SentinelID, Status: http.StatusBadRequest},
	StepEditRemoved:       {Method: http.MethodPut, Path: "/Story/Edit/{storyId}", Status: http.StatusNotFound},
	StepDeleteRemoved:     {Method: http.MethodDelete, Path: "/Story/Delete/{storyId}", Status: http.StatusBadRequest},
}

// Describe lists the steps Steps would build for opts, in run order.
func Describe(opts StepOptions) []StepInfo {
	steps := Steps(nil, opts)
	out := make([]StepInfo, len(steps))
	for i, s := range steps {
		info := stepRoutes[s.Name]
		info.Order = i + 1
		info.Name = s.Name
		out[i] = info
	}
	return out
}
