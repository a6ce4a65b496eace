package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/feedback"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var collab *domain.CollaboratorError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrUnknownPatchField):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &collab):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrGenerationDisabled),
		errors.Is(err, feedback.ErrNoRatingStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
}
