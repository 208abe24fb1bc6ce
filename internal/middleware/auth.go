package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/auth"
)

// Context keys populated by Auth for downstream handlers.
const (
	CtxMemberID = "member_id"
	CtxUsername = "username"
)

var errMissingAuthHeader = errors.New("missing Authorization header")

// Auth returns a gin middleware that validates a guest session token and
// stores the member identity on the request context. Tokens are accepted
// from the Authorization header or, for websocket upgrades where custom
// headers are awkward for browser clients, from the "token" query
// parameter.
func Auth(tokens *auth.Service) gin.HandlerFunc {
	if tokens == nil {
		panic("token service cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: no usable token on request")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: token rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(CtxMemberID, claims.MemberID)
		c.Set(CtxUsername, claims.Username)
		logrus.WithField("member_id", claims.MemberID).Debug("Auth middleware: guest authenticated")
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("malformed Authorization header")
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errMissingAuthHeader
}
