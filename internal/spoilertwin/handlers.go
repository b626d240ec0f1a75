package spoilertwin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type storyRequest struct {
	Title       string `json:"Title"`
	Description string `json:"Description"`
	URL         string `json:"Url"`
}

// validationProblem mirrors the problem-details body the live service sends
// for model validation failures.
func validationProblem(req storyRequest) map[string]any {
	errs := map[string][]string{}
	if req.Title == "" {
		errs["Title"] = []string{"The Title field is required."}
	}
	if req.Description == "" {
		errs["Description"] = []string{"The Description field is required."}
	}
	return map[string]any{
		"type":   "https://tools.ietf.org/html/rfc9110#section-15.5.1",
		"title":  "One or more validation errors occurred.",
		"status": http.StatusBadRequest,
		"errors": errs,
	}
}

func decodeStory(w http.ResponseWriter, r *http.Request) (storyRequest, bool) {
	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"title":  "One or more validation errors occurred.",
			"status": http.StatusBadRequest,
			"errors": map[string][]string{"$": {err.Error()}},
		})
		return req, false
	}
	if req.Title == "" || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, validationProblem(req))
		return req, false
	}
	return req, true
}

// Authenticate handles POST /api/User/Authentication
func (s *Server) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "Invalid request body: " + err.Error()})
		return
	}

	s.mu.Lock()
	password, known := s.users[req.Username]
	if !known || password != req.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": MsgBadLogin})
		return
	}
	token := newID()
	s.tokens[token] = req.Username
	s.mu.Unlock()

	s.logger.Debug().Str("username", req.Username).Msg("token issued")
	writeJSON(w, http.StatusOK, map[string]any{
		"username":    req.Username,
		"accessToken": token,
	})
}

// CreateStory handles POST /api/Story/Create
func (s *Server) CreateStory(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStory(w, r)
	if !ok {
		return
	}

	story := Story{
		ID:          newID(),
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
	}
	s.Stories.Set(story.ID, story)

	writeJSON(w, http.StatusCreated, map[string]any{
		"msg":     MsgCreated,
		"storyId": story.ID,
	})
}

// EditStory handles PUT /api/Story/Edit/{id}
func (s *Server) EditStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, exists := s.Stories.Get(id); !exists {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": MsgNoSpoilers})
		return
	}

	req, ok := decodeStory(w, r)
	if !ok {
		return
	}

	updated := s.Stories.Update(id, func(st *Story) {
		st.Title = req.Title
		st.Description = req.Description
		st.URL = req.URL
	})
	if !updated {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": MsgNoSpoilers})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"msg": MsgEdited})
}

// ListStories handles GET /api/Story/All
func (s *Server) ListStories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stories.List())
}

// DeleteStory handles DELETE /api/Story/Delete/{id}
func (s *Server) DeleteStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Stories.Delete(id) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": MsgDeleteMissing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": MsgDeleted})
}
