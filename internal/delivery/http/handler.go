package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/usecase"
)

const (
	serviceName    = "moodbite-backend"
	serviceVersion = "1.0.0"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scans      *usecase.ScanService
	dashboards *usecase.DashboardService
	feed       *usecase.ChangeFeed
	logger     *zap.Logger

	allowedOrigins []string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	scans *usecase.ScanService,
	dashboards *usecase.DashboardService,
	feed *usecase.ChangeFeed,
	logger *zap.Logger,
	allowedOrigins []string,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		scans:          scans,
		dashboards:     dashboards,
		feed:           feed,
		logger:         logger.Named("http"),
		allowedOrigins: allowedOrigins,
	}
}

// scanRequest is the body of POST /users/:userId/{scans,diet}
type scanRequest struct {
	Barcode  string `json:"barcode" binding:"required"`
	ScanDate string `json:"scanDate"`
}

// moodRequest is the body of PUT /users/:userId/moods/:date
type moodRequest struct {
	Mood string `json:"mood" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// LookupProduct resolves a barcode without persisting it
func (h *Handler) LookupProduct(c *gin.Context) {
	record, err := h.scans.Lookup(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetCatalogProduct reads a product from the shared catalog
func (h *Handler) GetCatalogProduct(c *gin.Context) {
	record, err := h.scans.CatalogRecord(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// AddRecord looks up a barcode and stores it in the collection
func (h *Handler) AddRecord(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "barcode is required"})
			return
		}

		record, err := h.scans.Scan(c.Request.Context(), c.Param("userId"), collection, req.Barcode, req.ScanDate)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

// ListRecords returns every record of the collection
func (h *Handler) ListRecords(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.scans.List(c.Request.Context(), c.Param("userId"), collection)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if records == nil {
			records = []domain.NutritionRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	}
}

// DeleteRecord removes a record; deleting an absent barcode succeeds
func (h *Handler) DeleteRecord(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.scans.Delete(c.Request.Context(), c.Param("userId"), collection, c.Param("barcode")); err != nil {
			h.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// SetMood records the mood of a date
func (h *Handler) SetMood(c *gin.Context) {
	var req moodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "mood is required"})
		return
	}

	userID, date := c.Param("userId"), c.Param("date")
	if err := h.scans.SetMood(c.Request.Context(), userID, date, req.Mood); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.MoodRecord{Date: date, Mood: req.Mood})
}

// ListMoods returns every mood entry of the user
func (h *Handler) ListMoods(c *gin.Context) {
	moods, err := h.scans.ListMoods(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if moods == nil {
		moods = []domain.MoodRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"moods": moods})
}

// GetDashboard aggregates the diet collection with the mood entries
func (h *Handler) GetDashboard(c *gin.Context) {
	dashboard, err := h.dashboards.Build(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("requestID", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCatalogTransport):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
