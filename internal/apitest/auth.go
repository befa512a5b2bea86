package apitest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
)

type ctxKey string

const userKey ctxKey = "user"

const detailBadCredentials = "Could not validate credentials"

func (s *Server) issueToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// userFromToken resolves a bearer token. Callers hold mu.
func (s *Server) userFromToken(raw string) (*user, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.profile.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("unknown user")
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s.mu.Lock()
		u, err := s.userFromToken(strings.TrimPrefix(h, "Bearer "))
		s.mu.Unlock()
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
			return
		}
		if !u.profile.IsActive {
			writeDetail(w, http.StatusForbidden, "Account disabled")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r).profile.Role != RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *user {
	return r.Context().Value(userKey).(*user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		validationError(w, "username", "form body required")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		validationError(w, "username", "field required")
		return
	}

	s.mu.Lock()
	u, ok := s.users[username]
	var hash []byte
	if ok {
		hash = u.passwordHash
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !u.profile.IsActive {
		writeDetail(w, http.StatusForbidden, "Account disabled")
		return
	}

	s.mu.Lock()
	token, err := s.issueToken(u.profile.ID)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, core.LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u.profile,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := currentUser(r).profile
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	oldPassword, newPassword := q.Get("old_password"), q.Get("new_password")
	u := currentUser(r)

	s.mu.Lock()
	current := u.passwordHash
	s.mu.Unlock()

	if bcrypt.CompareHashAndPassword(current, []byte(oldPassword)) != nil {
		writeDetail(w, http.StatusBadRequest, "Old password is incorrect")
		return
	}
	if len(newPassword) < MinPasswordLen {
		writeDetail(w, http.StatusBadRequest, "New password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	u.passwordHash = hash
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
