// Package auth verifies bearer tokens and carries the caller's user id on the
// request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves a bearer credential to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, error)
}

// JWTAuthenticator accepts HS256 tokens carrying the user id in a "userId"
// or "id" claim. Tokens without "exp" are rejected.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, raw string) (int64, error) {
	claims := jwt.MapClaims{}
	keyFunc := func(*jwt.Token) (any, error) { return a.secret, nil }
	_, err := jwt.ParseWithClaims(raw, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	for _, key := range []string{"userId", "id"} {
		if v, ok := claims[key]; ok {
			id, err := toUserID(v)
			if err != nil {
				return 0, fmt.Errorf("%w: claim %s: %v", ErrUnauthenticated, key, err)
			}
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: no user id claim", ErrUnauthenticated)
}

// Issue signs a token for userID. Used by tooling and tests.
func (a *JWTAuthenticator) Issue(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func toUserID(v any) (int64, error) {
	var id int64
	var err error
	switch t := v.(type) {
	case json.Number:
		id, err = t.Int64()
	case float64:
		id = int64(t)
		if float64(id) != t {
			err = errors.New("not an integer")
		}
	case string:
		id, err = strconv.ParseInt(t, 10, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("must be positive")
	}
	return id, nil
}

type ctxKey struct{}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated caller, if any.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

// Middleware rejects requests without a valid bearer token with 401.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			userID, err := a.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "UNAUTHENTICATED"})
}
