// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Access tokens are HMAC
// (HS256) signed JWTs minted by the companion auth frontend; this service
// only verifies them. The token is read from the Authorization header or,
// for browser clients, from the auth_token cookie.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// userIDKey is the Gin context key under which the authenticated user ID
	// is stored. Downstream middleware and handlers read it via UserIDFrom.
	userIDKey = "userID"
	// authCookie is the cookie carrying the access token for browser clients.
	authCookie = "auth_token"
)

// accessClaims is the expected token payload. The user identifier is carried
// in the standard subject claim; UserID is accepted as a fallback for tokens
// minted before the subject claim was adopted.
type accessClaims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that rejects requests without a valid access
// token. On success the user ID is stored in the Gin context under "userID".
//
// Token lookup order: "Authorization: Bearer <token>", then the auth_token
// cookie. Invalid, expired, or non-HMAC tokens yield a 401 with the standard
// error envelope.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "missing access token")
			return
		}

		claims := &accessClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !parsed.Valid {
			unauthorized(c, "invalid access token")
			return
		}

		uid := claims.Subject
		if uid == "" {
			uid = claims.UserID
		}
		if uid == "" {
			unauthorized(c, "token carries no user identity")
			return
		}

		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserIDFrom returns the authenticated user ID set by Auth, or "" when the
// request is unauthenticated.
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// bearerToken extracts the access token from the Authorization header or the
// auth cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if ck, err := c.Cookie(authCookie); err == nil {
		return strings.TrimSpace(ck)
	}
	return ""
}

// unauthorized aborts with a 401 and the standard error envelope.
func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
