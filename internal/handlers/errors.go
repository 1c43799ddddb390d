package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/temcen/gamerec/internal/recommender"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// statusForError maps service errors onto HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, recommender.ErrItemNotFound):
		return http.StatusNotFound, "ITEM_NOT_FOUND"
	case errors.Is(err, recommender.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, recommender.ErrModelNotBuilt):
		return http.StatusServiceUnavailable, "MODEL_NOT_BUILT"
	case errors.Is(err, recommender.ErrEmptyCatalog):
		return http.StatusUnprocessableEntity, "EMPTY_CATALOG"
	case errors.Is(err, recommender.ErrUnknownVocabulary):
		return http.StatusUnprocessableEntity, "UNKNOWN_VOCABULARY"
	case errors.Is(err, recommender.ErrNoFeedbackData):
		return http.StatusUnprocessableEntity, "NO_FEEDBACK_DATA"
	case errors.Is(err, recommender.ErrNonFiniteFeature):
		return http.StatusUnprocessableEntity, "NON_FINITE_FEATURE"
	case errors.Is(err, recommender.ErrInvalidPlaytime):
		return http.StatusUnprocessableEntity, "INVALID_PLAYTIME"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondServiceError(c *gin.Context, err error) {
	status, code := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	respondError(c, status, code, message)
}
