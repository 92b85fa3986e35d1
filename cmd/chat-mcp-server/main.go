package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
)

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	svc, _, err := chat.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	server := newServer(svc)

	log.Printf("🔗 Starting chat MCP server on stdin/stdout...")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("❌ Chat MCP Server failed: %v", err)
	}
}
