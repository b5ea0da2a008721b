// In file: internal/toolserver/handler.go
package toolserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// executeRequest is the body of POST /execute.
type executeRequest struct {
	Tool      string          `json:"tool" binding:"required"`
	Arguments json.RawMessage `json:"arguments"`
}

// Handler exposes a Registry over HTTP.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Register mounts the capability routes on router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/tools", h.handleListTools)
	router.POST("/execute", h.handleExecute)
}

func (h *Handler) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.Descriptors()})
}

func (h *Handler) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	userID := c.GetHeader(tools.UserIDHeader)

	result, err := h.registry.Execute(c.Request.Context(), userID, req.Tool, req.Arguments)
	switch {
	case errors.Is(err, ErrToolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrBadArguments):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("ERROR: tool %s failed: %v", req.Tool, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tool execution failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
