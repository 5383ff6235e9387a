package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/sirupsen/logrus"
)

// JWTAuthMiddleware validates HS256 bearer tokens
type JWTAuthMiddleware struct {
	config domain.AuthConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewJWTAuthMiddleware creates the bearer token middleware. It returns an
// error when auth is enabled without a secret.
func NewJWTAuthMiddleware(config domain.AuthConfig, log *logger.Logger) (*JWTAuthMiddleware, error) {
	if config.Enabled && config.Secret == "" {
		return nil, fmt.Errorf("jwt auth enabled without a secret")
	}

	mw := &JWTAuthMiddleware{
		config: config,
		logger: log.MiddlewareLogger("jwt_auth"),
		now:    time.Now,
	}

	mw.logger.WithFields(logrus.Fields{
		"enabled":  config.Enabled,
		"issuer":   config.Issuer,
		"audience": config.Audience,
	}).Info("JWT authentication middleware initialized")

	return mw, nil
}

// JWTAuth returns the middleware. A valid token's subject is stored as the
// user of the request context.
func (jm *JWTAuthMiddleware) JWTAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !jm.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				jm.logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
					"ip":     r.RemoteAddr,
				}).Warn("JWT token missing")
				jm.writeJWTError(w, "Not authorized")
				return
			}

			claims, err := jm.validateToken(token)
			if err != nil {
				jm.logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
					"ip":     r.RemoteAddr,
				}).WithError(err).Warn("JWT validation failed")
				jm.writeJWTError(w, "Not authorized")
				return
			}

			if requestCtx, ok := domain.RequestContextFrom(r.Context()); ok {
				requestCtx.User = claims.Subject
			}

			jm.logger.WithFields(logrus.Fields{
				"user":   claims.Subject,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Debug("JWT authentication successful")

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// validateToken checks the signature, expiry, issuer and audience
func (jm *JWTAuthMiddleware) validateToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jm.config.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("token has no expiry")
	}
	if !claims.VerifyExpiresAt(jm.now(), true) {
		return nil, fmt.Errorf("token expired")
	}
	if jm.config.Issuer != "" && !claims.VerifyIssuer(jm.config.Issuer, true) {
		return nil, fmt.Errorf("invalid issuer")
	}
	if jm.config.Audience != "" && !claims.VerifyAudience(jm.config.Audience, true) {
		return nil, fmt.Errorf("invalid audience")
	}

	return claims, nil
}

func (jm *JWTAuthMiddleware) writeJWTError(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

// GetStats returns JWT authentication settings
func (jm *JWTAuthMiddleware) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"enabled":  jm.config.Enabled,
		"issuer":   jm.config.Issuer,
		"audience": jm.config.Audience,
	}
}
