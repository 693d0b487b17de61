// Package arambotest provides an in-process fake of the back-office API for
// unit and scenario tests: scripted login with rate limiting, bearer token
// verification with expiry, and in-memory resource CRUD.
package arambotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const maxFailedLogins = 5

type admin struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type session struct {
	admin     admin
	expiresAt time.Time
}

// Server is a fake Arambo back-office API. All fields are guarded by mu;
// handlers are safe for concurrent requests.
type Server struct {
	HTTP *httptest.Server

	// ExpiresIn is returned verbatim as the session duration label
	ExpiresIn string
	// SessionTTL is the actual token validity used by verify
	SessionTTL time.Duration

	mu           sync.Mutex
	username     string
	password     string
	failedLogins int
	tokenSeq     int
	sessions     map[string]session

	properties map[string]map[string]any
	trips      map[string]map[string]any
	trucks     map[string]map[string]any
	furniture  map[string]map[string]any
}

func NewServer(username, password string) *Server {
	s := &Server{
		ExpiresIn:  "15m",
		SessionTTL: 15 * time.Minute,
		username:   username,
		password:   password,
		sessions:   make(map[string]session),
		properties: make(map[string]map[string]any),
		trips:      make(map[string]map[string]any),
		trucks:     make(map[string]map[string]any),
		furniture:  make(map[string]map[string]any),
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/verify", s.handleVerify).Methods("GET")
	r.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	for _, resource := range []string{"properties", "trips", "trucks", "furniture"} {
		resource := resource
		r.HandleFunc("/"+resource+"/stats", func(w http.ResponseWriter, req *http.Request) {
			s.handleStats(w, req, resource)
		}).Methods("GET")
		r.HandleFunc("/"+resource, func(w http.ResponseWriter, req *http.Request) {
			s.handleList(w, req, resource)
		}).Methods("GET")
		r.HandleFunc("/"+resource, func(w http.ResponseWriter, req *http.Request) {
			s.handleCreate(w, req, resource)
		}).Methods("POST")
		r.HandleFunc("/"+resource+"/{id}", func(w http.ResponseWriter, req *http.Request) {
			s.handleGet(w, req, resource)
		}).Methods("GET")
		r.HandleFunc("/"+resource+"/{id}", func(w http.ResponseWriter, req *http.Request) {
			s.handleUpdate(w, req, resource)
		}).Methods("PUT")
		r.HandleFunc("/"+resource+"/{id}", func(w http.ResponseWriter, req *http.Request) {
			s.handleDelete(w, req, resource)
		}).Methods("DELETE")
	}

	s.HTTP = httptest.NewServer(r)
	return s
}

func (s *Server) URL() string {
	return s.HTTP.URL
}

func (s *Server) Close() {
	s.HTTP.Close()
}

// SeedProperty inserts a property document and returns its id.
func (s *Server) SeedProperty(fields map[string]any) string {
	return s.seed(s.properties, fields)
}

func (s *Server) SeedTrip(fields map[string]any) string {
	return s.seed(s.trips, fields)
}

func (s *Server) SeedTruck(fields map[string]any) string {
	return s.seed(s.trucks, fields)
}

// SeedFurniture inserts a furniture document, keyed under "_id" like the
// real endpoint.
func (s *Server) SeedFurniture(fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSeq++
	id := fmt.Sprintf("doc-%d", s.tokenSeq)
	doc := map[string]any{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	s.furniture[id] = doc
	return id
}

// RevokeAllSessions makes every issued token invalid, so the next
// authenticated call gets a 401.
func (s *Server) RevokeAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]session)
}

// SessionCount reports how many sessions are currently issued.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) seed(store map[string]map[string]any, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSeq++
	id := fmt.Sprintf("doc-%d", s.tokenSeq)
	doc := map[string]any{"id": id}
	for k, v := range fields {
		doc[k] = v
	}
	store[id] = doc
	return id
}

func (s *Server) store(resource string) map[string]map[string]any {
	switch resource {
	case "properties":
		return s.properties
	case "trips":
		return s.trips
	case "trucks":
		return s.trucks
	default:
		return s.furniture
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "message": "malformed request",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failedLogins >= maxFailedLogins {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success": false, "message": "Too many login attempts. Please try again later.",
		})
		return
	}

	if creds.Username != s.username || creds.Password != s.password {
		s.failedLogins++
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false, "message": "Invalid username or password.",
		})
		return
	}

	s.failedLogins = 0
	s.tokenSeq++
	token := fmt.Sprintf("token-%d", s.tokenSeq)
	adm := admin{ID: "admin-1", Username: creds.Username}
	s.sessions[token] = session{admin: adm, expiresAt: time.Now().Add(s.SessionTTL)}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"accessToken": token,
			"expiresIn":   s.ExpiresIn,
			"admin":       adm,
		},
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false, "message": "invalid session",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"admin":   sess.admin,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, resource string) {
	s.mu.Lock()
	docs := make([]map[string]any, 0, len(s.store(resource)))
	for _, doc := range s.store(resource) {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	if resource == "furniture" {
		writeJSON(w, http.StatusOK, map[string]any{"data": docs})
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, resource string) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	doc, ok := s.store(resource)[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false, "message": "not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, resource string) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "message": "malformed request",
		})
		return
	}
	var id string
	if resource == "furniture" {
		id = s.SeedFurniture(fields)
	} else {
		id = s.seed(s.store(resource), fields)
	}
	s.mu.Lock()
	doc := s.store(resource)[id]
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, resource string) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false, "message": "Authentication required",
		})
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "message": "malformed request",
		})
		return
	}

	id := mux.Vars(r)["id"]
	s.mu.Lock()
	doc, ok := s.store(resource)[id]
	if ok {
		for k, v := range fields {
			doc[k] = v
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false, "message": "not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, resource string) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false, "message": "Authentication required",
		})
		return
	}

	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, ok := s.store(resource)[id]
	delete(s.store(resource), id)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false, "message": "not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, resource string) {
	s.mu.Lock()
	total := len(s.store(resource))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"total": total})
}

func (s *Server) sessionFor(r *http.Request) (session, bool) {
	token := bearerToken(r)
	if token == "" {
		return session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || time.Now().After(sess.expiresAt) {
		return session{}, false
	}
	return sess, true
}

func (s *Server) authorized(r *http.Request) bool {
	_, ok := s.sessionFor(r)
	return ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
