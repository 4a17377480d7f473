package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vibecall/backend/internal/matchhub"
	"vibecall/backend/internal/models"
	"vibecall/backend/internal/notify"
)

// Engine is the matchmaking surface the HTTP layer drives.
type Engine interface {
	JoinQueue(ctx context.Context, userID string, prefs models.Preferences) (matchhub.QueueStatus, error)
	LeaveQueue(userID string)
	Heartbeat(userID string, clientTS time.Time) time.Time
	QueueStatus(userID string) matchhub.StatusView
	SessionAction(ctx context.Context, userID, sessionID string, action models.Action, reason string) (matchhub.ActionResult, error)
	Session(ctx context.Context, userID, sessionID string) (models.Session, error)
	CurrentSession(userID string) (models.Session, error)
}

// Handler містить посилання на двигун, fanout і автентифікацію
type Handler struct {
	Engine Engine
	Fanout *notify.Fanout
	Auth   *Authenticator
}

func NewHandler(engine Engine, fanout *notify.Fanout, auth *Authenticator) *Handler {
	return &Handler{Engine: engine, Fanout: fanout, Auth: auth}
}

// NewRouter builds the gin engine. Anonymous token issuance is only exposed outside
// release mode; production identities come from the external identity provider.
func NewRouter(h *Handler, mode string) *gin.Engine {
	registerValidatorTagNames()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if mode != gin.ReleaseMode {
		r.POST("/api/auth/anonymous", h.GetAnonID)
	}

	api := r.Group("/api", h.AuthRequired())
	{
		api.POST("/queue/join", h.JoinQueue)
		api.POST("/queue/leave", h.LeaveQueue)
		api.GET("/queue/status", h.QueueStatus)
		api.POST("/heartbeat", h.Heartbeat)

		api.POST("/sessions/action", h.SessionAction)
		api.GET("/sessions/current", h.CurrentSession)
		api.GET("/sessions/:id", h.GetSession)

		api.GET("/ws", h.ServeWebSocket)
	}
	return r
}
