package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/pkg/auth"
	"github.com/iamasit07/guess-master/backend/pkg/httputil"
	"github.com/rs/zerolog/log"
)

const (
	userIDKey   = "user_id"
	usernameKey = "username"
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// ProfileSink learns display profiles from validated tokens. Optional.
type ProfileSink interface {
	Remember(p domain.Profile)
}

// AuthMiddleware validates the access token from the cookie or Authorization
// header and stores the caller's id in the gin context
func AuthMiddleware(tokens TokenValidator, sink ProfileSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := httputil.GetTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": domain.ErrUnauthenticated.Message})
			return
		}

		claims, err := tokens.ValidateAccessToken(tokenString)
		if err != nil {
			log.Debug().Err(err).Str("component", "http").Msg("rejected access token")
			httputil.ClearAuthCookie(c.Writer)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		id := domain.ToPlayerID(claims.UserID)
		if sink != nil {
			sink.Remember(domain.Profile{
				ID:       id,
				Username: claims.Username,
				FullName: strings.TrimSpace(claims.FirstName + " " + claims.LastName),
			})
		}

		c.Set(userIDKey, id)
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}

// UserID returns the authenticated caller, or the zero id on public routes
func UserID(c *gin.Context) domain.PlayerID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(domain.PlayerID); ok {
			return id
		}
	}
	return ""
}

// SetUserID is used by tests to fake an authenticated caller
func SetUserID(c *gin.Context, id domain.PlayerID) {
	c.Set(userIDKey, id)
}
