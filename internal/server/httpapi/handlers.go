package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/server/models"
	"github.com/avoronin/authkeeper/internal/server/providers"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// userResponse is the sanitized user representation: the password hash,
// provider tag, blocked flag, and creation time never leave the server.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		UpdatedAt: u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError translates business errors into client-facing rejections
// with no internal detail; everything else is a generic server fault.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "wrong login or password")
	case errors.Is(err, common.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "user with this email already exists")
	case errors.Is(err, common.ErrProviderUserCreation):
		writeError(w, http.StatusBadRequest, "can't create user for this provider account")
	default:
		s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "email", req.Email)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeTokenPair(w, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)

	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), token, r.UserAgent())
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			s.clearRefreshCookie(w)
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.writeTokenPair(w, pair)
}

// handleProviderSuccess exchanges a provider access token (query parameter
// "token") for a verified email, then runs federated login.
func (s *Server) handleProviderSuccess(fetcher providers.EmailFetcher, provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerToken := r.URL.Query().Get("token")
		if providerToken == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}

		email, err := fetcher.FetchEmail(r.Context(), providerToken)
		if err != nil {
			s.logger.Warn(r.Context(), "provider email fetch failed", "error", err, "provider", provider)
			writeError(w, http.StatusBadGateway, "provider verification failed")
			return
		}

		pair, err := s.auth.ProviderAuth(r.Context(), email, r.UserAgent(), provider)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.writeTokenPair(w, pair)
	}
}

// writeTokenPair places the refresh token into the cookie and the access
// token into the response body, and nowhere else.
func (s *Server) writeTokenPair(w http.ResponseWriter, pair *models.TokenPair) {
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: pair.AccessToken})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Find(r.Context(), r.PathValue("idOrEmail"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.users.Delete(r.Context(), r.PathValue("id"), claims); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
