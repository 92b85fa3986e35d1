package gateway

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-gateway/internal/chat"
)

const (
	headerRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID reuses the caller's X-Request-ID or assigns a new one, echoes it
// back and makes it available to the chat service through the context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(chat.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s id=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), c.GetString(requestIDKey))
	}
}
