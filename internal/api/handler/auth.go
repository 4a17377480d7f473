package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"

	"vibecall/backend/internal/apperror"
)

const (
	tokenIssuer   = "vibecall-service"
	anonTokenTTL  = 72 * time.Hour
	userIDContext = "userID"
)

// Authenticator перевіряє і видає JWT з анонімним ID
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// IssueToken генерує JWT з анонімним ID
func (a *Authenticator) IssueToken(anonID string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"sub":     anonID,
		"exp":     a.now().Add(anonTokenTTL).Unix(),
		"iss":     tokenIssuer,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// validateAndGetAnonID повертає ID користувача з валідного токена (anon_id або sub)
func (a *Authenticator) validateAndGetAnonID(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if id, ok := claims["anon_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", errors.New("token carries no user id")
}

// AuthRequired приймає токен з заголовка Authorization або з параметра ?token= (для WebSocket)
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			respondError(c, apperror.Unauthorized("authorization token missing"))
			c.Abort()
			return
		}
		userID, err := h.Auth.validateAndGetAnonID(token)
		if err != nil {
			respondError(c, apperror.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}
		c.Set(userIDContext, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDContext)
}

// GetAnonID створює AnonID та повертає JWT
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()

	token, err := h.Auth.IssueToken(anonID)
	if err != nil {
		respondError(c, apperror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anonId": anonID})
}
