// Package gateway exposes the chat service over HTTP.
package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chat-gateway/internal/llm"
)

// Chat is what the gateway needs from the chat service.
type Chat interface {
	History() ([]llm.Message, error)
	Generate(ctx context.Context, prompt string) (llm.Message, error)
}

type Options struct {
	// Addr is the listen address, e.g. ":3000".
	Addr            string
	CORSOrigin      string
	ShutdownTimeout time.Duration
}

type Server struct {
	chat   Chat
	opts   Options
	router *gin.Engine
	server *http.Server
}

func New(chat Chat, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{chat: chat, opts: opts}
	s.router = s.routes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(), corsPolicy(corsConfig(s.opts.CORSOrigin)))

	r.GET("/message-history", s.handleHistory)
	r.POST("/generate", s.handleGenerate)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func corsConfig(origin string) cors.Config {
	return cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Kuma-Revision"},
		AllowCredentials: true,
		MaxAge:           600 * time.Second,
	}
}

// corsPolicy sends the fixed policy on every response. Requests from the
// configured origin go through gin-contrib/cors; requests without an Origin
// header, or from any other origin, get the same headers and the browser
// enforces the mismatch.
func corsPolicy(cfg cors.Config) gin.HandlerFunc {
	negotiated := cors.New(cfg)
	origin := cfg.AllowOrigins[0]
	methods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")
	maxAge := strconv.FormatInt(int64(cfg.MaxAge/time.Second), 10)

	return func(c *gin.Context) {
		if c.GetHeader("Origin") == origin {
			negotiated(c)
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if c.Request.Method != http.MethodOptions {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
			c.Next()
			return
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Max-Age", maxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.server = s.httpServer()

	log.Printf("🌐 Server is running on %s", s.opts.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
