package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kbtrial/internal/models"
)

type ProtocolHandler struct {
	protocol *models.Protocol
}

func NewProtocolHandler(protocol *models.Protocol) *ProtocolHandler {
	return &ProtocolHandler{protocol: protocol}
}

// Show returns the protocol name and its trial ids in declaration order.
func (h *ProtocolHandler) Show(c *gin.Context) {
	ids := make([]string, 0, len(h.protocol.Trials))
	for _, t := range h.protocol.Trials {
		ids = append(ids, t.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":           h.protocol.Name,
		"randomizeOrder": h.protocol.RandomizeOrder,
		"trials":         ids,
	})
}
