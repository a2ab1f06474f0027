package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to a request
type Principal struct {
	UserID string
	Role   string
}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated caller from ctx
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errAuthHeaderFormat  = errors.New("invalid authorization header format")
	errInvalidToken      = errors.New("invalid token")
	errTokenClaims       = errors.New("invalid token claims")
)

// principalFromHeader verifies a "Bearer <jwt>" header signed with jwtSecret
func principalFromHeader(authHeader, jwtSecret string) (Principal, error) {
	if authHeader == "" {
		return Principal{}, errMissingAuthHeader
	}

	scheme, tokenString, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
		return Principal{}, errAuthHeaderFormat
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return Principal{}, errTokenClaims
	}
	role, ok := claims["role"].(string)
	if !ok {
		return Principal{}, errTokenClaims
	}

	return Principal{UserID: userID, Role: role}, nil
}

// AuthMiddleware validates JWT tokens and extracts user claims
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := principalFromHeader(r.Header.Get("Authorization"), jwtSecret)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				switch {
				case errors.Is(err, errMissingAuthHeader), errors.Is(err, errAuthHeaderFormat), errors.Is(err, errTokenClaims):
					RespondWithError(w, http.StatusUnauthorized, err.Error())
				case errors.Is(err, jwt.ErrTokenExpired):
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				default:
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", principal.UserID),
				zap.String("role", principal.Role),
			)

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}
