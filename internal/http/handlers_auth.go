package http

import (
	"errors"
	"net/http"
	"time"

	"finan/internal/core"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type photoRequest struct {
	Photo string `json:"photo"`
}

// decode reads the JSON body into dst and writes the 4xx response itself
// when it cannot.
func decode(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	err := DecodeJSON(w, r, limit, dst)
	if err == nil {
		return true
	}
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	NewJSONResponse().
		Status(status).
		Body(ErrorBody{Error: err.Error(), Code: CodeBadRequest}).
		Write(w)
	return false
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	u, err := s.users.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	u, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, u core.User) {
	token, expiresAt, err := s.tokens.Generate(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(status).
		Body(sessionResponse{Token: token, ExpiresAt: expiresAt, User: u}).
		Write(w)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	u, err := s.users.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	var req profileRequest
	if !decode(w, r, maxBodyBytes, &req) {
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), userID, sanitizeInput(req.Name), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleUpdatePhoto(w http.ResponseWriter, r *http.Request, userID int64) {
	var req photoRequest
	if !decode(w, r, maxPhotoBodyBytes, &req) {
		return
	}
	if err := s.users.UpdatePhoto(r.Context(), userID, req.Photo); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleNotifications returns and clears the user's pending notices.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, userID int64) {
	NewJSONResponse().
		Body(map[string]any{"notifications": s.notices.Recent(userID)}).
		Write(w)
}
