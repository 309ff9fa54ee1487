// Package mcp exposes the prompt library over the Model Context
// Protocol.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the library coordinator directly. Every tool returns typed
// structured output plus a text summary for clients that only read text
// content.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/library"
)

// Server wires library operations to MCP tools on a stdio transport.
type Server struct {
	mcp     *mcp.Server
	library *library.Library
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "promptd")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "promptd",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server around the library coordinator.
func NewServer(cfg *Config, lib *library.Library) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if lib == nil {
		return nil, fmt.Errorf("library is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		library: lib,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// textResult wraps a plain text summary as a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// addTool registers a typed tool whose handler returns structured output
// plus a text summary, recording invocation metrics around every call.
func addTool[In, Out any](s *Server, tool *mcp.Tool, handler func(ctx context.Context, args In) (Out, string, error)) {
	mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, tool.Name)

		out, text, err := handler(ctx, args)

		s.metrics.DecrementActive(ctx, tool.Name)
		s.metrics.RecordInvocation(ctx, tool.Name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool call failed",
				zap.String("tool", tool.Name),
				zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		return textResult(text), out, nil
	})
}
