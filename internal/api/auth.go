package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token.
type Claims struct {
	UserID interface{} `json:"userId,omitempty"`
	Email  string      `json:"email,omitempty"`
	Role   string      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFrom returns the verified claims of the request, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Authenticator verifies HS256 session tokens taken from a bearer header or
// a cookie.
type Authenticator struct {
	secret     []byte
	cookieName string
	parser     *jwt.Parser
}

// NewAuthenticator creates an Authenticator. An empty cookieName uses "token".
func NewAuthenticator(secret, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = "token"
	}
	return &Authenticator{
		secret:     []byte(secret),
		cookieName: cookieName,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

var errNoToken = errors.New("no token")

// tokenFrom prefers the bearer token and falls back to the cookie.
func (a *Authenticator) tokenFrom(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if tok := strings.TrimSpace(header[len("Bearer "):]); tok != "" {
			return tok
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errNoToken
	}
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Sign issues a token for claims. Only tests and tooling mint tokens; the
// login flow lives outside this service.
func (a *Authenticator) Sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := a.tokenFrom(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := a.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

type meResponse struct {
	OK   bool   `json:"ok"`
	User meUser `json:"user"`
}

type meUser struct {
	UserID interface{} `json:"userId"`
	Email  string      `json:"email"`
	Role   string      `json:"role"`
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	if claims == nil {
		claims = &Claims{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		OK:   true,
		User: meUser{UserID: claims.UserID, Email: claims.Email, Role: claims.Role},
	})
}
