package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// ProgressAudience marks tokens that may only watch one progress session.
// The API rejects them.
const ProgressAudience = "progress"

type JWTAuth struct {
	Secret []byte
	now    func() time.Time
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret), now: time.Now}
}

// GenerateAccessToken creates an HS256 token for subject that expires
// after ttl.
func (j *JWTAuth) GenerateAccessToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// GenerateProgressToken creates a token that only authorizes listening to
// the progress events of session.
func (j *JWTAuth) GenerateProgressToken(session string, ttl time.Duration) (string, error) {
	if session == "" {
		return "", errors.New("progress session is required")
	}
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   session,
		Audience:  jwt.ClaimStrings{ProgressAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ParseToken verifies an API token and returns its subject. Progress tokens
// are rejected.
func (j *JWTAuth) ParseToken(tokenStr string) (string, error) {
	claims, err := j.parseClaims(tokenStr)
	if err != nil {
		return "", err
	}
	if slices.Contains(claims.Audience, ProgressAudience) {
		return "", jwt.ErrTokenInvalidAudience
	}
	return claims.Subject, nil
}

// AuthorizeSession reports whether tokenStr may listen to session: any API
// token may, a progress token only for the session it was issued for.
func (j *JWTAuth) AuthorizeSession(tokenStr, session string) error {
	claims, err := j.parseClaims(tokenStr)
	if err != nil {
		return err
	}
	if slices.Contains(claims.Audience, ProgressAudience) && claims.Subject != session {
		return fmt.Errorf("%w: token issued for another session", jwt.ErrTokenInvalidSubject)
	}
	return nil
}

func (j *JWTAuth) parseClaims(tokenStr string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

// Middleware validates the bearer token and attaches its subject to the
// request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		subject, err := j.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientID extracts the authenticated subject from the request context.
func GetClientID(ctx context.Context) string {
	id, _ := ctx.Value(ClientIDKey).(string)
	return id
}
