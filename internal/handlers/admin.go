package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/messaging"
	"github.com/temcen/gamerec/internal/middleware"
	"github.com/temcen/gamerec/internal/services"
	"github.com/temcen/gamerec/pkg/models"
)

const defaultRefreshSource = "postgres"

// AdminHandler drives model rebuilds and reports model status.
type AdminHandler struct {
	service   services.RecommendationServiceInterface
	publisher services.RefreshPublisherInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

// NewAdminHandler creates a new admin handler. publisher may be nil when
// asynchronous refresh is disabled.
func NewAdminHandler(
	service services.RecommendationServiceInterface,
	publisher services.RefreshPublisherInterface,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		service:   service,
		publisher: publisher,
		validator: validator.New(),
		logger:    logger,
	}
}

type RebuildResponse struct {
	ModelID         string    `json:"model_id"`
	Version         int64     `json:"version"`
	Items           int       `json:"items"`
	Users           int       `json:"users"`
	Interactions    int       `json:"interactions"`
	DegenerateItems int       `json:"degenerate_items"`
	DegenerateUsers int       `json:"degenerate_users"`
	Duration        string    `json:"duration"`
	Shared          bool      `json:"shared"`
	Source          string    `json:"source"`
	CompletedAt     time.Time `json:"completed_at"`
}

type RefreshRequest struct {
	Source      string `json:"source"`
	RequestedBy string `json:"requested_by"`
}

// Rebuild serves POST /admin/models/rebuild. The body is a complete snapshot,
// or empty to rebuild from the database.
func (h *AdminHandler) Rebuild(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "BODY_READ_ERROR", "Failed to read request body")
		return
	}

	var snapshot *models.Snapshot
	source := defaultRefreshSource
	if len(body) > 0 {
		snapshot = &models.Snapshot{}
		if err := json.Unmarshal(body, snapshot); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
			return
		}
		if err := h.validator.Struct(snapshot); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
			return
		}
		source = "request"
	}

	fields := logrus.Fields{"source": source}
	if claims := middleware.GetClaimsFromContext(c); claims != nil {
		fields["requested_by"] = claims.Subject
	}

	// The build outlives a disconnected client: concurrent callers may be
	// sharing it. The service bounds it with the build timeout.
	stats, err := h.service.Rebuild(context.WithoutCancel(c.Request.Context()), snapshot)
	if err != nil {
		h.logger.WithError(err).WithFields(fields).Warn("Model rebuild rejected")
		respondServiceError(c, err)
		return
	}

	h.logger.WithFields(fields).WithField("version", stats.Version).Info("Model rebuild completed")

	c.JSON(http.StatusOK, RebuildResponse{
		ModelID:         stats.ModelID,
		Version:         stats.Version,
		Items:           stats.Items,
		Users:           stats.Users,
		Interactions:    stats.Interactions,
		DegenerateItems: stats.DegenerateItems,
		DegenerateUsers: stats.DegenerateUsers,
		Duration:        stats.Duration.String(),
		Shared:          stats.Shared,
		Source:          source,
		CompletedAt:     time.Now().UTC(),
	})
}

// Refresh serves POST /admin/models/refresh by queueing a rebuild event.
func (h *AdminHandler) Refresh(c *gin.Context) {
	if h.publisher == nil {
		respondError(c, http.StatusServiceUnavailable, "REFRESH_UNAVAILABLE", "Asynchronous refresh is not enabled")
		return
	}

	var request RefreshRequest
	body, err := readBody(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "BODY_READ_ERROR", "Failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &request); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
			return
		}
	}
	if request.Source == "" {
		request.Source = defaultRefreshSource
	}
	if request.RequestedBy == "" {
		if claims := middleware.GetClaimsFromContext(c); claims != nil {
			request.RequestedBy = claims.Subject
		}
	}

	event, err := h.publisher.PublishRefresh(c.Request.Context(), request.Source, request.RequestedBy)
	if err != nil {
		h.logger.WithError(err).Error("Failed to queue model refresh")
		respondError(c, http.StatusBadGateway, "REFRESH_PUBLISH_FAILED", "Failed to queue model refresh")
		return
	}

	c.JSON(http.StatusAccepted, event)
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(body), nil
}

// StatusResponse is the model status plus, when asynchronous refresh is
// enabled, the refresh consumer's position.
type StatusResponse struct {
	models.ModelStatus
	RefreshConsumer *messaging.ConsumerStats `json:"refresh_consumer,omitempty"`
}

// Status serves GET /admin/models/status.
func (h *AdminHandler) Status(c *gin.Context) {
	response := StatusResponse{ModelStatus: h.service.Status()}
	if h.publisher != nil {
		if stats, ok := h.publisher.ConsumerStats(); ok {
			response.RefreshConsumer = &stats
		}
	}
	c.JSON(http.StatusOK, response)
}
