// Package auth issues session tokens and resolves the caller of an HTTP request.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/config"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

const issuer = "laofi"

var (
	ErrNoSession    = fmt.Errorf("%w: no session token", apperr.ErrUnauthenticated)
	ErrInvalidToken = fmt.Errorf("%w: invalid session token", apperr.ErrUnauthenticated)
)

type claims struct {
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  user.Role `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewManager(cfg config.SessionConfig, secureCookies bool) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, config.ErrMissingSessionSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = "session-token"
	}
	return &Manager{
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		cookieName: name,
		secure:     secureCookies,
		now:        time.Now,
	}, nil
}

// Issue signs a session token for p.
func (m *Manager) Issue(p user.Principal) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a session token and returns the principal it carries.
func (m *Manager) Parse(raw string) (user.Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil {
		return user.Principal{}, ErrInvalidToken
	}
	role, err := user.ParseRole(string(c.Role))
	if err != nil {
		return user.Principal{}, ErrInvalidToken
	}

	return user.Principal{ID: id, Name: c.Name, Email: c.Email, Role: role}, nil
}

// TokenFromRequest reads the session cookie, then an Authorization bearer header.
func (m *Manager) TokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token, nil
		}
	}

	return "", ErrNoSession
}

// PrincipalFromRequest resolves the caller of r from its session token.
func (m *Manager) PrincipalFromRequest(r *http.Request) (user.Principal, error) {
	raw, err := m.TokenFromRequest(r)
	if err != nil {
		return user.Principal{}, err
	}
	return m.Parse(raw)
}

func (m *Manager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(expires.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
