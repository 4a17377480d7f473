package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vibecall/backend/internal/matchhub"
	"vibecall/backend/internal/models"
)

type ageRangeDTO struct {
	Min int `json:"min" binding:"gte=18"`
	Max int `json:"max" binding:"gtefield=Min,lte=120"`
}

type joinQueueRequest struct {
	AnonymousMode    bool         `json:"anonymousMode"`
	AgeRange         *ageRangeDTO `json:"ageRange" binding:"omitempty"`
	GenderPreference string       `json:"genderPreference" binding:"omitempty,oneof=male female non-binary any"`
	Interests        []string     `json:"interests" binding:"omitempty,max=10,dive,required,max=50"`
}

func (r joinQueueRequest) preferences() models.Preferences {
	prefs := models.Preferences{
		AnonymousMode:    r.AnonymousMode,
		GenderPreference: models.Gender(r.GenderPreference),
		Interests:        r.Interests,
	}
	if r.AgeRange != nil {
		prefs.AgeRange = &models.AgeRange{Min: r.AgeRange.Min, Max: r.AgeRange.Max}
	}
	return prefs
}

type queueStatusResponse struct {
	InQueue           bool  `json:"inQueue"`
	Position          int   `json:"position,omitempty"`
	EstimatedWaitTime int64 `json:"estimatedWaitTime"`
	QueueSize         int   `json:"queueSize,omitempty"`
}

type globalStatsResponse struct {
	InQueue        bool  `json:"inQueue"`
	TotalInQueue   int   `json:"totalInQueue"`
	AvgWaitTime    int64 `json:"avgWaitTime"`
	OldestWaitTime int64 `json:"oldestWaitTime"`
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func positionResponse(st matchhub.QueueStatus) queueStatusResponse {
	return queueStatusResponse{
		InQueue:           true,
		Position:          st.Position,
		EstimatedWaitTime: seconds(st.EstimatedWaitTime),
		QueueSize:         st.QueueSize,
	}
}

// JoinQueue додає користувача до черги. Порожнє тіло означає "без побажань".
func (h *Handler) JoinQueue(c *gin.Context) {
	var req joinQueueRequest
	if err := bindJSON(c, &req, true); err != nil {
		respondError(c, err)
		return
	}

	st, err := h.Engine.JoinQueue(c.Request.Context(), currentUserID(c), req.preferences())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, positionResponse(st))
}

func (h *Handler) LeaveQueue(c *gin.Context) {
	h.Engine.LeaveQueue(currentUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) QueueStatus(c *gin.Context) {
	view := h.Engine.QueueStatus(currentUserID(c))
	if view.InQueue {
		c.JSON(http.StatusOK, positionResponse(view.QueueStatus))
		return
	}
	c.JSON(http.StatusOK, globalStatsResponse{
		TotalInQueue:   view.Global.TotalInQueue,
		AvgWaitTime:    seconds(view.Global.AvgWaitTime),
		OldestWaitTime: seconds(view.Global.OldestWaitTime),
	})
}

type heartbeatRequest struct {
	Timestamp int64 `json:"timestamp" binding:"gte=0"`
}

// Heartbeat приймає мітку часу клієнта (epoch ms) і повертає час сервера
func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := bindJSON(c, &req, true); err != nil {
		respondError(c, err)
		return
	}
	var clientTS time.Time
	if req.Timestamp > 0 {
		clientTS = time.UnixMilli(req.Timestamp)
	}
	serverTime := h.Engine.Heartbeat(currentUserID(c), clientTS)
	c.JSON(http.StatusOK, gin.H{"serverTime": serverTime.UnixMilli()})
}
