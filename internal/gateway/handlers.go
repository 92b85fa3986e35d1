package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/llm"
)

type generateRequest struct {
	Prompt *string `json:"prompt"`
}

type generateResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHistory(c *gin.Context) {
	msgs, err := s.chat.History()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Prompt == nil {
		s.fail(c, chat.ErrInvalidPrompt)
		return
	}

	// the turn runs to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	reply, err := s.chat.Generate(ctx, *req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, generateResponse{Message: reply.Content})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s %s failed (request %s): %v", c.Request.Method, c.Request.URL.Path, c.GetString(requestIDKey), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidPrompt):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrInferenceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
