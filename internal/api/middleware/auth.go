package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/utils"
)

// AuthMiddleware accepts either the static API key header or an HS256
// bearer token signed with the configured secret.
func AuthMiddleware(cfg *config.APIConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// API key first (machine-to-machine callers)
		apiKey := c.GetHeader("X-API-Key")
		if apiKey != "" && apiKey == cfg.APIKey {
			c.Set("auth_subject", "api-key")
			c.Next()
			return
		}

		if token := extractBearerToken(c); token != "" {
			claims, err := validateToken(token, cfg.JWTSecret)
			if err == nil {
				if subject, serr := claims.GetSubject(); serr == nil && subject != "" {
					c.Set("auth_subject", subject)
				}
				c.Next()
				return
			}
			utils.LogWarn(c.Request.Context(), "Rejected bearer token", utils.Fields{
				"error": err.Error(),
			})
		}

		c.JSON(401, gin.H{
			"error":      utils.NewUnauthorizedError(),
			"request_id": c.GetString("request_id"),
			"timestamp":  time.Now().Format(time.RFC3339),
		})
		c.Abort()
	}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func validateToken(token, secret string) (jwt.Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return parsed.Claims, nil
}
