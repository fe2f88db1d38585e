package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// business failures the API reports as 400 even though their kind maps elsewhere
var statusOverrides = []struct {
	err    error
	status int
}{
	{domain.ErrRoundAlreadyWon, http.StatusBadRequest},
	{domain.ErrGameMasterGuess, http.StatusBadRequest},
}

func statusFor(err error) int {
	for _, o := range statusOverrides {
		if errors.Is(err, o.err) {
			return o.status
		}
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err as {message}. Internal failures are logged and hidden.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("component", "http").Str("path", c.FullPath()).Msg("request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"message": "Internal server error"})
		return
	}

	var de *domain.Error
	errors.As(err, &de)
	c.JSON(status, gin.H{"message": de.Message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
