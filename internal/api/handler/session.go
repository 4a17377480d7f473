package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vibecall/backend/internal/models"
)

type sessionActionRequest struct {
	Action       string `json:"action" binding:"required,oneof=vibe skip report"`
	SessionID    string `json:"sessionId" binding:"required"`
	ReportReason string `json:"reportReason" binding:"required_if=Action report,max=500"`
}

type sessionActionResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Resolved bool   `json:"resolved"`
	IsMatch  *bool  `json:"isMatch,omitempty"`
}

// SessionAction записує vibe, skip або report учасника
func (h *Handler) SessionAction(c *gin.Context) {
	var req sessionActionRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, err)
		return
	}

	action := models.Action(req.Action)
	res, err := h.Engine.SessionAction(c.Request.Context(), currentUserID(c), req.SessionID, action, req.ReportReason)
	if err != nil {
		respondError(c, err)
		return
	}

	out := sessionActionResponse{Success: res.Success, Message: res.Message, Resolved: res.Resolved}
	if action == models.ActionVibe {
		isMatch := res.IsMatch
		out.IsMatch = &isMatch
	}
	c.JSON(http.StatusOK, out)
}

type sessionResponse struct {
	ID              string              `json:"id"`
	State           models.SessionState `json:"state"`
	PartnerID       string              `json:"partnerId"`
	RoomURL         string              `json:"roomUrl,omitempty"`
	Icebreaker      string              `json:"icebreaker,omitempty"`
	StartedAt       int64               `json:"startedAt,omitempty"`
	DeadlineAt      int64               `json:"deadlineAt,omitempty"`
	ResolvedAt      int64               `json:"resolvedAt,omitempty"`
	YourOutcome     models.Action       `json:"yourOutcome,omitempty"`
	IsMatch         *bool               `json:"isMatch,omitempty"`
	SharedInterests []string            `json:"sharedInterests,omitempty"`
}

// newSessionResponse shows the caller's own outcome only; the partner's verdict is
// revealed through isMatch once the session is resolved.
func newSessionResponse(s models.Session, userID string) sessionResponse {
	out := sessionResponse{
		ID:              s.ID,
		State:           s.State,
		PartnerID:       s.Partner(userID),
		RoomURL:         s.RoomURL,
		Icebreaker:      s.Icebreaker,
		StartedAt:       epochMillis(s.StartedAt),
		DeadlineAt:      epochMillis(s.DeadlineAt),
		ResolvedAt:      epochMillis(s.ResolvedAt),
		YourOutcome:     s.OutcomeOf(userID),
		SharedInterests: s.SharedInterests,
	}
	if s.State == models.SessionResolved || s.State == models.SessionClosed {
		isMatch := s.IsMatch
		out.IsMatch = &isMatch
	}
	return out
}

func (h *Handler) GetSession(c *gin.Context) {
	userID := currentUserID(c)
	s, err := h.Engine.Session(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s, userID))
}

func (h *Handler) CurrentSession(c *gin.Context) {
	userID := currentUserID(c)
	s, err := h.Engine.CurrentSession(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s, userID))
}
