package router

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"kbtrial/internal/handlers"
)

const (
	csrfTokenSessionKey = "csrf_token"
	csrfTokenHeaderKey  = "X-CSRF-Token"
	csrfTokenBytes      = 32
)

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CSRFProtection keeps a token in the cookie session, echoes it in the
// X-CSRF-Token response header and requires it back in the same header on
// unsafe methods.
func CSRFProtection() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		token, _ := session.Get(csrfTokenSessionKey).(string)
		if token == "" {
			newToken, err := newCSRFToken()
			if err != nil {
				c.AbortWithError(http.StatusInternalServerError, errors.New("failed to generate CSRF token"))
				return
			}
			token = newToken
			session.Set(csrfTokenSessionKey, token)
			if err := session.Save(); err != nil {
				c.AbortWithError(http.StatusInternalServerError, errors.New("failed to save session"))
				return
			}
		}

		c.Set(handlers.CSRFTokenContextKey, token)
		c.Header(csrfTokenHeaderKey, token)

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if submitted := c.GetHeader(csrfTokenHeaderKey); submitted == "" || submitted != token {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
				return
			}
		}

		c.Next()
	}
}
