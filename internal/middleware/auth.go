package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims Sitesmith tokens carry.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var (
	errMissingHeader = errors.New("authorization header is required")
	errInvalidHeader = errors.New("authorization header must be 'Bearer <token>'")
)

// Auth validates bearer tokens and puts the user id on the context. When
// devFallback is true (non-production only), unauthenticated requests run
// as the seeded demo user instead of being rejected.
func Auth(secret string, devFallback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if devFallback {
				c.Set("user_id", uint(1))
				c.Next()
				return
			}
			abortUnauthorized(c, errMissingHeader)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		claims, err := ValidateToken(token, secret)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// ValidateToken parses and verifies a Sitesmith JWT.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// GetUserID returns the authenticated user id from the gin context.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errInvalidHeader
	}
	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": err.Error(),
		"code":  "UNAUTHORIZED",
	})
}
