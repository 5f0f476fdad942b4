// ABOUTME: Login, registration and current-user handlers for the development backend
// ABOUTME: Passwords are bcrypt hashed; unknown users still pay for one comparison

package devserver

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/skillchat/internal/client"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	acct := s.accounts[req.Username]
	s.mu.Unlock()

	if !passwordMatches(acct, req.Password) {
		s.sendJSONError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := s.issuer.Generate(req.Username, s.opts.TokenTTL)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user logged in", "username", req.Username)
	s.sendJSON(w, http.StatusOK, client.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req client.RegisterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.AddUser(req.Username, req.Email, req.Password)
	if errors.Is(err, ErrUserExists) {
		s.sendJSONError(w, http.StatusBadRequest, "Username already registered")
		return
	}
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		s.sendJSONError(w, http.StatusBadRequest, "password is too long")
		return
	}
	if err != nil {
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user registered", "username", user.Username, "user_id", user.ID)
	s.sendJSON(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.currentUser(r.Context()))
}
