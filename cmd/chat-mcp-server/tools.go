package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chat-gateway/internal/llm"
)

type chatService interface {
	History() ([]llm.Message, error)
	Generate(ctx context.Context, prompt string) (llm.Message, error)
}

type historyInput struct{}

type historyOutput struct {
	Messages []llm.Message `json:"messages"`
}

type generateInput struct {
	Prompt string `json:"prompt" jsonschema:"the user message to send to the assistant"`
}

type generateOutput struct {
	Message string `json:"message"`
}

type chatTools struct {
	svc chatService
}

func (t *chatTools) History(ctx context.Context, req *mcp.CallToolRequest, _ historyInput) (*mcp.CallToolResult, historyOutput, error) {
	msgs, err := t.svc.History()
	if err != nil {
		return nil, historyOutput{}, err
	}
	return nil, historyOutput{Messages: msgs}, nil
}

func (t *chatTools) Generate(ctx context.Context, req *mcp.CallToolRequest, in generateInput) (*mcp.CallToolResult, generateOutput, error) {
	reply, err := t.svc.Generate(ctx, in.Prompt)
	if err != nil {
		return nil, generateOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: reply.Content}},
	}, generateOutput{Message: reply.Content}, nil
}

func newServer(svc chatService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chat-gateway-mcp",
		Version: "1.0.0",
	}, nil)

	tools := &chatTools{svc: svc}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "message_history",
		Description: "Returns the stored conversation transcript, oldest message first",
	}, tools.History)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate",
		Description: "Appends a user prompt to the conversation, asks the model for a reply and stores both",
	}, tools.Generate)

	return server
}
