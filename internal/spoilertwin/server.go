// Package spoilertwin is an in-memory behavioral twin of the Story Spoiler
// API. It serves the same routes and response shapes as the real service so
// the acceptance pipeline can be exercised without network access.
package spoilertwin

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api"

// Response messages, matching the live service.
const (
	MsgCreated       = "Successfully created!"
	MsgEdited        = "Successfully edited"
	MsgDeleted       = "Deleted successfully!"
	MsgNoSpoilers    = "No spoilers..."
	MsgDeleteMissing = "Unable to delete this story spoiler!"
	MsgUnauthorized  = "Unauthorized"
	MsgBadLogin      = "Invalid username or password!"
)

// Story is one stored spoiler.
type Story struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Options configures a Server.
type Options struct {
	// Users maps usernames to passwords accepted at login.
	Users  map[string]string
	Logger *zerolog.Logger
}

// Server is the twin. Stories, Faults and Requests are exported for tests.
type Server struct {
	Stories  *Store[Story]
	Faults   *FaultRegistry
	Requests *RequestLog

	router chi.Router
	logger zerolog.Logger

	mu     sync.RWMutex
	users  map[string]string
	tokens map[string]string
}

// New creates a Server with its routes mounted under BasePath.
func New(opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	users := make(map[string]string, len(opts.Users))
	for u, p := range opts.Users {
		users[u] = p
	}

	s := &Server{
		Stories:  NewStore[Story](),
		Faults:   NewFaultRegistry(),
		Requests: NewRequestLog(1000),
		logger:   logger,
		users:    users,
		tokens:   make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Route(BasePath, func(r chi.Router) {
		r.With(s.faultInjection("login")).Post("/User/Authentication", s.Authenticate)

		r.Route("/Story", func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.With(s.faultInjection("create")).Post("/Create", s.CreateStory)
			r.With(s.faultInjection("edit")).Put("/Edit/{id}", s.EditStory)
			r.With(s.faultInjection("list")).Get("/All", s.ListStories)
			r.With(s.faultInjection("delete")).Delete("/Delete/{id}", s.DeleteStory)
		})
	})
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers or replaces a login.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// IssuedTokens returns the number of tokens handed out so far.
func (s *Server) IssuedTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Reset clears stories, tokens, faults and the request log. Users are kept.
func (s *Server) Reset() {
	s.Stories.Reset()
	s.Faults.Reset()
	s.Requests.Clear()
	s.mu.Lock()
	s.tokens = make(map[string]string)
	s.mu.Unlock()
}

// bearerAuth rejects requests whose bearer token was not issued by this twin.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": MsgUnauthorized})
			return
		}

		s.mu.RLock()
		_, ok := s.tokens[token]
		s.mu.RUnlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": MsgUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newID() string {
	return uuid.NewString()
}
