package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/service"
)

// CheckHandler exposes the decision engine to embedding applications that
// call over HTTP instead of linking the middleware in-process.
type CheckHandler struct {
	engine *service.Engine
}

func NewCheckHandler(engine *service.Engine) *CheckHandler {
	return &CheckHandler{engine: engine}
}

func (h *CheckHandler) Check(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
		Kind       string `json:"kind"`
		Action     string `json:"action" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := models.KindUser
	if req.Kind == string(models.KindIP) {
		kind = models.KindIP
	}

	result := h.engine.Check(c.Request.Context(), req.Identifier, kind, req.Action)

	c.JSON(http.StatusOK, result)
}
