package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/services"
	"github.com/temcen/gamerec/pkg/models"
)

type RecommendationHandler struct {
	service   services.RecommendationServiceInterface
	validator *validator.Validate
	defaultK  int
	defaultN  int
	logger    *logrus.Logger
}

func NewRecommendationHandler(
	service services.RecommendationServiceInterface,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *RecommendationHandler {
	defaultK, defaultN := 5, 5
	if cfg != nil {
		if cfg.SimilarItems.DefaultK > 0 {
			defaultK = cfg.SimilarItems.DefaultK
		}
		if cfg.Expansion.DefaultN > 0 {
			defaultN = cfg.Expansion.DefaultN
		}
	}

	return &RecommendationHandler{
		service:   service,
		validator: validator.New(),
		defaultK:  defaultK,
		defaultN:  defaultN,
		logger:    logger,
	}
}

// GetSimilarItems serves GET /items/:itemId/similar?k=
func (h *RecommendationHandler) GetSimilarItems(c *gin.Context) {
	k, ok := h.intQuery(c, "k", h.defaultK)
	if !ok {
		return
	}

	request := models.SimilarItemsRequest{ItemID: c.Param("itemId"), K: k}
	if err := h.validator.Struct(request); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	response, err := h.service.SimilarItems(c.Request.Context(), request.ItemID, request.K)
	if err != nil {
		h.logQueryError(err, logrus.Fields{"item_id": request.ItemID, "k": request.K})
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetUserRecommendations serves GET /users/:userId/recommendations?n=
func (h *RecommendationHandler) GetUserRecommendations(c *gin.Context) {
	n, ok := h.intQuery(c, "n", h.defaultN)
	if !ok {
		return
	}

	request := models.UserRecommendationRequest{UserID: c.Param("userId"), N: n}
	if err := h.validator.Struct(request); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	response, err := h.service.RecommendForUser(c.Request.Context(), request.UserID, request.N)
	if err != nil {
		h.logQueryError(err, logrus.Fields{"user_id": request.UserID, "n": request.N})
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", name+" must be an integer")
		return 0, false
	}
	return value, true
}

func (h *RecommendationHandler) logQueryError(err error, fields logrus.Fields) {
	status, _ := statusForError(err)
	entry := h.logger.WithError(err).WithFields(fields)
	if status >= http.StatusInternalServerError {
		entry.Error("Recommendation query failed")
		return
	}
	entry.Debug("Recommendation query rejected")
}
