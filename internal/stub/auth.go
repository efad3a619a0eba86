package stub

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session"
	csrfCookie    = "csrftoken"
	sessionTTL    = 24 * time.Hour
)

// issueSession signs a jwt for the user and sets it as the session cookie.
func (s *Server) issueSession(w http.ResponseWriter, userID int) error {
	claims := &jwt.StandardClaims{
		Subject:   strconv.Itoa(userID),
		ExpiresAt: time.Now().Add(sessionTTL).Unix(),
		IssuedAt:  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtKey)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clearSession expires the session cookie.
func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// currentAccount resolves the session cookie to an account, if any.
func (s *Server) currentAccount(r *http.Request) (*Account, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, false
	}
	return s.store.AccountByID(userID)
}

// ensureCSRFCookie sets the csrftoken cookie when the request lacks one,
// mirroring how the production backend primes it on catalog reads.
func (s *Server) ensureCSRFCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(csrfCookie); err == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}

// requireCSRF rejects unsafe requests whose X-CSRFToken header does not
// match the csrftoken cookie.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			cookie, err := r.Cookie(csrfCookie)
			if err != nil || cookie.Value == "" || r.Header.Get("X-CSRFToken") != cookie.Value {
				respond(w, http.StatusForbidden, detail("CSRF Failed: CSRF token missing or incorrect."))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth loads the session account or answers 401.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (*Account, bool) {
	acct, ok := s.currentAccount(r)
	if !ok {
		respond(w, http.StatusUnauthorized, detail("Authentication credentials were not provided."))
		return nil, false
	}
	return acct, true
}

// requireStaff gates the admin area: 401 without a session, 403 without
// the staff flag.
func (s *Server) requireStaff(w http.ResponseWriter, r *http.Request) (*Account, bool) {
	acct, ok := s.requireAuth(w, r)
	if !ok {
		return nil, false
	}
	if !acct.User.IsStaff {
		respond(w, http.StatusForbidden, detail("You do not have permission to perform this action."))
		return nil, false
	}
	return acct, true
}

// requireDriver gates the driver console the same way.
func (s *Server) requireDriver(w http.ResponseWriter, r *http.Request) (*Account, bool) {
	acct, ok := s.requireAuth(w, r)
	if !ok {
		return nil, false
	}
	if !acct.IsDriver {
		respond(w, http.StatusForbidden, detail("You do not have permission to perform this action."))
		return nil, false
	}
	return acct, true
}
