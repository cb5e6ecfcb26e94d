package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"propertypro/server/internal/models"
	"propertypro/server/internal/queue"
)

// InteractionSink accepts interaction batches for asynchronous storage.
type InteractionSink interface {
	Push(batch []models.InteractionRecord) error
}

// PreferenceStore reads and replaces a user's preferences.
type PreferenceStore interface {
	FetchPreferences(ctx context.Context, userID int64) (*models.PreferenceSet, error)
	SavePreferences(ctx context.Context, set *models.PreferenceSet) error
}

type UserHandler struct {
	sink   InteractionSink
	prefs  PreferenceStore
	logger *logrus.Logger
	now    func() time.Time
}

type InteractionRequest struct {
	UserID     int64         `json:"user_id" binding:"required"`
	PropertyID int64         `json:"property_id" binding:"required"`
	Action     models.Action `json:"action" binding:"required"`
	Count      int           `json:"count"`
}

type preferenceEntry struct {
	Kind   string          `json:"kind"`
	Value  json.RawMessage `json:"value"`
	Weight int             `json:"weight"`
}

func NewUserHandler(sink InteractionSink, prefs PreferenceStore, logger *logrus.Logger) *UserHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &UserHandler{sink: sink, prefs: prefs, logger: logger, now: time.Now}
}

// LogInteractions queues one or more interaction events.
func (h *UserHandler) LogInteractions(c *gin.Context) {
	var reqs []InteractionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interactions payload"})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No interactions provided"})
		return
	}

	now := h.now().UTC()
	batch := make([]models.InteractionRecord, 0, len(reqs))
	for _, r := range reqs {
		if r.UserID <= 0 || r.PropertyID <= 0 || !r.Action.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interaction", "action": r.Action})
			return
		}
		count := r.Count
		if count <= 0 {
			count = 1
		}
		batch = append(batch, models.InteractionRecord{
			UserID:        r.UserID,
			PropertyID:    r.PropertyID,
			Action:        r.Action,
			Count:         count,
			LastTimestamp: now,
		})
	}

	if err := h.sink.Push(batch); err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			h.logger.WithError(err).WithField("batch_size", len(batch)).Warn("Interaction queue unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Interaction queue unavailable"})
			return
		}
		h.logger.WithError(err).Error("Failed to queue interactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue interactions"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": len(batch)})
}

func (h *UserHandler) GetPreferences(c *gin.Context) {
	userID, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	set, err := h.prefs.FetchPreferences(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to get preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get preferences"})
		return
	}

	entries := make([]preferenceEntry, 0)
	if set != nil {
		for _, wd := range set.Dimensions {
			kind, raw, err := models.EncodeDimension(wd.Dimension)
			if err != nil {
				h.logger.WithError(err).Error("Failed to encode preference")
				continue
			}
			entries = append(entries, preferenceEntry{Kind: kind, Value: raw, Weight: wd.Weight})
		}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": entries})
}

// PutPreferences replaces the user's preferences with the request body.
func (h *UserHandler) PutPreferences(c *gin.Context) {
	userID, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	var entries []preferenceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences payload"})
		return
	}

	set := models.NewPreferenceSet(userID)
	for _, e := range entries {
		dim, err := models.ParseDimension(e.Kind, e.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		set.Set(dim, e.Weight)
	}

	if err := h.prefs.SavePreferences(c.Request.Context(), set); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to save preferences")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "dimensions": len(set.Dimensions)})
}
