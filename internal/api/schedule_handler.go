package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/models"
	"github.com/challenges/scheduler/internal/store"
)

// ScheduleHandler exposes the schedule CRUD surface. Every route sits behind
// the trigger gate; this service has no user-session concept.
type ScheduleHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewScheduleHandler(st *store.Store, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: st, logger: logger}
}

type CreateScheduleReq struct {
	OwnerID       string            `json:"owner_id" binding:"required"`
	ScheduledTime time.Time         `json:"scheduled_time" binding:"required"`
	RoomConfig    models.JSONMap    `json:"room_config" binding:"required"`
	ChatMessages  models.StringList `json:"chat_messages"`
}

type UpdateScheduleReq struct {
	ScheduledTime *time.Time         `json:"scheduled_time"`
	RoomConfig    models.JSONMap     `json:"room_config"`
	ChatMessages  *models.StringList `json:"chat_messages"`
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req CreateScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	challenge, err := h.store.Create(c.Request.Context(), store.CreateParams{
		OwnerID:       req.OwnerID,
		ScheduledTime: req.ScheduledTime,
		RoomConfig:    req.RoomConfig,
		ChatMessages:  req.ChatMessages,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, challenge)
}

func (h *ScheduleHandler) List(c *gin.Context) {
	ownerID := c.Query("owner_id")
	status := models.ChallengeStatus(c.Query("status"))

	challenges, err := h.store.List(c.Request.Context(), ownerID, status)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": challenges, "count": len(challenges)})
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	challenge, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	var req UpdateScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	challenge, err := h.store.Update(c.Request.Context(), c.Param("id"), store.UpdateParams{
		ScheduledTime: req.ScheduledTime,
		RoomConfig:    req.RoomConfig,
		ChatMessages:  req.ChatMessages,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// Cancel handles DELETE but never hard-deletes; cancelled rows stay for
// audit.
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Cancel(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.ChallengeStatusCancelled})
}
