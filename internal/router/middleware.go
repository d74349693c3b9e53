package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kbtrial/internal/handlers"
)

const (
	participantSessionKey = "participantID"
	adminKeyHeader        = "X-Admin-Key"
)

// ParticipantMiddleware gives every visitor a stable participant id stored in
// the cookie session and exposes it on the context.
func ParticipantMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		participantID, ok := session.Get(participantSessionKey).(string)
		if !ok || participantID == "" {
			participantID = xid.New().String()
			session.Set(participantSessionKey, participantID)
			if err := session.Save(); err != nil {
				log.Error("Failed to save participant session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
				return
			}
			log.Debug("New participant", zap.String("participant_id", participantID))
		}

		c.Set(handlers.ParticipantContextKey, participantID)
		c.Next()
	}
}

// AdminRequired accepts requests whose X-Admin-Key header matches the bcrypt
// hash.
func AdminRequired(log *zap.Logger, keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			log.Warn("Rejected admin request", zap.String("path", c.Request.URL.Path), zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
