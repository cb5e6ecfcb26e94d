package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"propertypro/server/internal/models"
	"propertypro/server/internal/trends"
)

// Recommender is the engine surface served over HTTP.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID int64, limit int) []models.Recommendation
	GetSimilar(ctx context.Context, propertyID int64, limit int) ([]models.SimilarProperty, error)
	PredictInterest(ctx context.Context, userID, propertyID int64) (*models.InterestPrediction, error)
	MatchScore(ctx context.Context, userID, propertyID int64) (float64, error)
	Retrain(ctx context.Context, force bool) (bool, error)
	ModelStats(ctx context.Context) (*models.ModelStats, error)
	PriceTrends(ctx context.Context, region string) ([]trends.Series, error)
	InvestmentProperties(ctx context.Context, region string, limit int) ([]models.InvestmentListing, []models.PropertyRecord, error)
	InvestmentMap(ctx context.Context, region string, limit int) (*geojson.FeatureCollection, error)
}

type Handler struct {
	engine Recommender
	logger *logrus.Logger
}

type RetrainRequest struct {
	Force bool `json:"force"`
}

func NewHandler(engine Recommender, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{engine: engine, logger: logger}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrTrainingInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	entry := h.logger.WithError(err).WithField("path", c.FullPath())
	if status == http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}
	c.JSON(status, gin.H{"error": message, "detail": err.Error()})
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return 0 // engine default
	}
	return limit
}

func (h *Handler) requireUser(c *gin.Context) (int64, bool) {
	userID, ok := parseID(c.Query("user_id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing user_id"})
	}
	return userID, ok
}

func (h *Handler) requireProperty(c *gin.Context) (int64, bool) {
	propertyID, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
	}
	return propertyID, ok
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	recs := h.engine.GetRecommendations(c.Request.Context(), userID, queryLimit(c))
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "recommendations": recs})
}

func (h *Handler) GetSimilar(c *gin.Context) {
	propertyID, ok := h.requireProperty(c)
	if !ok {
		return
	}
	similar, err := h.engine.GetSimilar(c.Request.Context(), propertyID, queryLimit(c))
	if err != nil {
		h.fail(c, err, "Failed to get similar properties")
		return
	}
	if similar == nil {
		similar = []models.SimilarProperty{}
	}
	c.JSON(http.StatusOK, gin.H{"property_id": propertyID, "similar": similar})
}

func (h *Handler) PredictInterest(c *gin.Context) {
	propertyID, ok := h.requireProperty(c)
	if !ok {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	prediction, err := h.engine.PredictInterest(c.Request.Context(), userID, propertyID)
	if err != nil {
		h.fail(c, err, "Failed to predict interest")
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (h *Handler) MatchScore(c *gin.Context) {
	propertyID, ok := h.requireProperty(c)
	if !ok {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	score, err := h.engine.MatchScore(c.Request.Context(), userID, propertyID)
	if err != nil {
		h.fail(c, err, "Failed to compute match score")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "property_id": propertyID, "match_score": score})
}

func (h *Handler) Retrain(c *gin.Context) {
	var req RetrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	trained, err := h.engine.Retrain(c.Request.Context(), req.Force)
	if err != nil {
		h.fail(c, err, "Failed to retrain model")
		return
	}

	status := "skipped"
	if trained {
		status = "trained"
	}
	h.logger.WithFields(logrus.Fields{"force": req.Force, "status": status}).Info("Retrain requested via API")
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) ModelStats(c *gin.Context) {
	stats, err := h.engine.ModelStats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to get model stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) PriceTrends(c *gin.Context) {
	series, err := h.engine.PriceTrends(c.Request.Context(), c.Query("region"))
	if err != nil {
		h.fail(c, err, "Failed to get price trends")
		return
	}
	if series == nil {
		series = []trends.Series{}
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) InvestmentProperties(c *gin.Context) {
	listings, _, err := h.engine.InvestmentProperties(c.Request.Context(), c.Query("region"), queryLimit(c))
	if err != nil {
		h.fail(c, err, "Failed to get investment properties")
		return
	}
	if listings == nil {
		listings = []models.InvestmentListing{}
	}
	c.JSON(http.StatusOK, listings)
}

func (h *Handler) InvestmentMap(c *gin.Context) {
	fc, err := h.engine.InvestmentMap(c.Request.Context(), c.Query("region"), queryLimit(c))
	if err != nil {
		h.fail(c, err, "Failed to get investment map")
		return
	}
	c.JSON(http.StatusOK, fc)
}
